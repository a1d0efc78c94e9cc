// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"strings"
	"time"

	"outreach_backend/internal/statemachine"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

// Status is the lead pipeline status.
type Status string

const (
	StatusNew          Status = "new"
	StatusEnriched     Status = "enriched"
	StatusScored       Status = "scored"
	StatusQualified    Status = "qualified"
	StatusSequenced    Status = "sequenced"
	StatusReplied      Status = "replied"
	StatusConverted    Status = "converted"
	StatusDisqualified Status = "disqualified"
)

// Machine declares the lead status transition table. CONVERTED and
// DISQUALIFIED are terminal.
var Machine = statemachine.New(
	"lead",
	StatusNew,
	map[Status][]Status{
		StatusNew:       {StatusEnriched},
		StatusEnriched:  {StatusScored},
		StatusScored:    {StatusQualified, StatusDisqualified},
		StatusQualified: {StatusSequenced},
		StatusSequenced: {StatusReplied, StatusDisqualified},
		StatusReplied:   {StatusConverted, StatusDisqualified},
	},
)

// Classification is the tier derived from the ICP score.
type Classification string

const (
	ClassificationHot      Classification = "hot"
	ClassificationWarm     Classification = "warm"
	ClassificationCool     Classification = "cool"
	ClassificationCold     Classification = "cold"
	ClassificationUnscored Classification = "unscored"
)

// Fixed ICP score thresholds. A lead qualifies at the warm boundary.
const (
	hotThreshold     = 75
	warmThreshold    = 60
	coolThreshold    = 45
	QualifyThreshold = warmThreshold
)

// Classify maps an ICP score to its classification tier.
// A nil score classifies as unscored.
func Classify(score *int) Classification {
	switch {
	case score == nil:
		return ClassificationUnscored
	case *score >= hotThreshold:
		return ClassificationHot
	case *score >= warmThreshold:
		return ClassificationWarm
	case *score >= coolThreshold:
		return ClassificationCool
	default:
		return ClassificationCold
	}
}

// Lead is a prospective contact at a company.
type Lead struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	FirstName      string
	LastName       string
	Email          *string
	JobTitle       *string
	ICPScore       *int
	ScoreBreakdown map[string]float64
	Classification Classification
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName joins first and last name, falling back to whichever is present.
func (l *Lead) FullName() string {
	first := strings.TrimSpace(l.FirstName)
	last := strings.TrimSpace(l.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}

// UpdateStatus applies a guarded status transition.
func (l *Lead) UpdateStatus(target Status) error {
	if err := Machine.Transition(l.Status, target); err != nil {
		return err
	}
	l.Status = target
	l.UpdatedAt = time.Now()
	return nil
}

// UpdateScore records an ICP score with its optional factor breakdown,
// recomputes the classification, and advances the lead along the legal
// pipeline path: every lead walks toward SCORED, and a score at or above the
// qualify threshold continues to QUALIFIED. Each step is guarded, so leads
// already past those statuses are left untouched and repeated calls with the
// same inputs are no-ops.
func (l *Lead) UpdateScore(score int, breakdown map[string]float64) error {
	if score < 0 || score > 100 {
		return apperr.Validation("icp score must be between 0 and 100")
	}

	l.ICPScore = &score
	l.ScoreBreakdown = breakdown
	l.Classification = Classify(&score)

	chain := []Status{StatusEnriched, StatusScored}
	if score >= QualifyThreshold {
		chain = append(chain, StatusQualified)
	}
	l.Status = Machine.Advance(l.Status, chain...)
	l.UpdatedAt = time.Now()
	return nil
}
