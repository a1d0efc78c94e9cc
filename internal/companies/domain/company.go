// Package domain provides core business rules for the companies bounded context.
package domain

import (
	"time"

	"outreach_backend/internal/statemachine"

	"github.com/google/uuid"
)

// Status is the company pipeline status.
type Status string

const (
	StatusNew          Status = "new"
	StatusEnriching    Status = "enriching"
	StatusEnriched     Status = "enriched"
	StatusNoContact    Status = "no_contact"
	StatusContacted    Status = "contacted"
	StatusConverted    Status = "converted"
	StatusDisqualified Status = "disqualified"
)

// Source is the discovery channel a company came from.
type Source string

const (
	SourceGoogleMaps  Source = "google_maps"
	SourceLinkedIn    Source = "linkedin"
	SourceYellowPages Source = "yellow_pages"
	SourceCSVImport   Source = "csv_import"
	SourceManual      Source = "manual"
)

var knownSources = map[Source]struct{}{
	SourceGoogleMaps:  {},
	SourceLinkedIn:    {},
	SourceYellowPages: {},
	SourceCSVImport:   {},
	SourceManual:      {},
}

// IsKnownSource reports whether source is a declared discovery channel.
func IsKnownSource(source Source) bool {
	_, ok := knownSources[source]
	return ok
}

// Machine declares the company status transition table. NO_CONTACT,
// CONVERTED, and DISQUALIFIED are terminal.
var Machine = statemachine.New(
	"company",
	StatusNew,
	map[Status][]Status{
		StatusNew:       {StatusEnriching},
		StatusEnriching: {StatusEnriched, StatusNoContact},
		StatusEnriched:  {StatusContacted, StatusDisqualified},
		StatusContacted: {StatusConverted, StatusDisqualified},
	},
)

// Company is a prospective business discovered through scraping or imports.
// Domain, when present, is the unique deduplication key across companies.
type Company struct {
	ID        uuid.UUID
	Name      string
	Domain    *string
	Source    Source
	Status    Status
	Industry  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateStatus applies a guarded status transition. It mutates nothing on
// failure and stamps UpdatedAt on success.
func (c *Company) UpdateStatus(target Status) error {
	if err := Machine.Transition(c.Status, target); err != nil {
		return err
	}
	c.Status = target
	c.UpdatedAt = time.Now()
	return nil
}
