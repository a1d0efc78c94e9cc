// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"outreach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Company Domain Events
// =============================================================================

// CompanyDiscovered is published when ingestion creates a new company.
type CompanyDiscovered struct {
	BaseEvent
	CompanyID uuid.UUID `json:"companyId"`
	Name      string    `json:"name"`
	Domain    *string   `json:"domain,omitempty"`
	Source    string    `json:"source"`
}

func (e CompanyDiscovered) EventName() string { return "companies.discovered" }

// CompanyStatusChanged is published when a company moves through its pipeline.
type CompanyStatusChanged struct {
	BaseEvent
	CompanyID uuid.UUID `json:"companyId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e CompanyStatusChanged) EventName() string { return "companies.status.changed" }

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a new lead is extracted for a company.
type LeadCreated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	CompanyID uuid.UUID `json:"companyId"`
	Email     *string   `json:"email,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadScored is published after a lead's ICP score is recorded.
type LeadScored struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	Score          int       `json:"score"`
	Classification string    `json:"classification"`
	Status         string    `json:"status"`
}

func (e LeadScored) EventName() string { return "leads.scored" }

// LeadQualified is published when scoring advances a lead to qualified.
type LeadQualified struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Score  int       `json:"score"`
}

func (e LeadQualified) EventName() string { return "leads.qualified" }

// =============================================================================
// Email Domain Events
// =============================================================================

// EmailSent is published after an outreach email is delivered to SMTP.
type EmailSent struct {
	BaseEvent
	EmailID      uuid.UUID `json:"emailId"`
	LeadID       uuid.UUID `json:"leadId"`
	CompanyID    uuid.UUID `json:"companyId"`
	SequenceStep string    `json:"sequenceStep"`
}

func (e EmailSent) EventName() string { return "emails.sent" }

// EmailEngaged is published when a tracking event lands on an email.
type EmailEngaged struct {
	BaseEvent
	EmailID   uuid.UUID `json:"emailId"`
	LeadID    uuid.UUID `json:"leadId"`
	EventType string    `json:"eventType"`
}

func (e EmailEngaged) EventName() string { return "emails.engaged" }

// =============================================================================
// Scrape Job Domain Events
// =============================================================================

// ScrapeJobCompleted is published when a scrape job finishes successfully.
type ScrapeJobCompleted struct {
	BaseEvent
	JobID             uuid.UUID `json:"jobId"`
	ResultsCount      int       `json:"resultsCount"`
	NewCompaniesCount int       `json:"newCompaniesCount"`
	DuplicateCount    int       `json:"duplicateCount"`
}

func (e ScrapeJobCompleted) EventName() string { return "scrapejobs.completed" }

// ScrapeJobFailed is published when a scrape job fails.
type ScrapeJobFailed struct {
	BaseEvent
	JobID  uuid.UUID `json:"jobId"`
	Reason string    `json:"reason"`
}

func (e ScrapeJobFailed) EventName() string { return "scrapejobs.failed" }
