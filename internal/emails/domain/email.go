// Package domain provides core business rules for the outreach email context.
package domain

import (
	"time"

	"outreach_backend/internal/statemachine"

	"github.com/google/uuid"
)

// Status is the email delivery and engagement status.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusOpened  Status = "opened"
	StatusClicked Status = "clicked"
	StatusReplied Status = "replied"
	StatusBounced Status = "bounced"
	StatusFailed  Status = "failed"
)

// Machine declares the email status transition table. REPLIED, BOUNCED, and
// FAILED are terminal.
var Machine = statemachine.New(
	"email",
	StatusDraft,
	map[Status][]Status{
		StatusDraft:   {StatusPending},
		StatusPending: {StatusSent, StatusFailed},
		StatusSent:    {StatusOpened, StatusReplied, StatusBounced},
		StatusOpened:  {StatusClicked, StatusReplied, StatusBounced},
		StatusClicked: {StatusReplied, StatusBounced},
	},
)

// SequenceStep is the position of an email within the outreach cadence.
type SequenceStep string

const (
	StepInitial   SequenceStep = "initial"
	StepFollowUp1 SequenceStep = "follow_up_1"
	StepFollowUp2 SequenceStep = "follow_up_2"
	StepBreakup   SequenceStep = "breakup"
)

// IsKnownStep reports whether s is a declared sequence step.
func IsKnownStep(s SequenceStep) bool {
	switch s {
	case StepInitial, StepFollowUp1, StepFollowUp2, StepBreakup:
		return true
	}
	return false
}

// Email is one outbound outreach message for a lead.
type Email struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	Subject      string
	BodyText     string
	Status       Status
	SequenceStep SequenceStep
	// TrackingID correlates inbound pixel and link hits back to this email.
	// Immutable once assigned, globally unique.
	TrackingID uuid.UUID
	OpenCount  int
	ClickCount int
	SentAt     *time.Time
	OpenedAt   *time.Time
	ClickedAt  *time.Time
	RepliedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewTrackingID mints the opaque token embedded in outbound emails.
func NewTrackingID() uuid.UUID {
	return uuid.New()
}

// Queue moves a draft into the send queue.
func (e *Email) Queue() error {
	return e.transition(StatusPending)
}

// MarkSent records successful SMTP delivery.
func (e *Email) MarkSent() error {
	if err := e.transition(StatusSent); err != nil {
		return err
	}
	now := time.Now()
	e.SentAt = &now
	return nil
}

// MarkFailed records a delivery failure.
func (e *Email) MarkFailed() error {
	return e.transition(StatusFailed)
}

// RecordOpen increments the open counter on every call. The first open pins
// OpenedAt; the status moves to OPENED only when the current status permits
// it, so repeated opens after a click never regress the status.
func (e *Email) RecordOpen() {
	now := time.Now()
	e.OpenCount++
	if e.OpenedAt == nil {
		e.OpenedAt = &now
	}
	e.advance(StatusOpened)
	e.UpdatedAt = now
}

// RecordClick mirrors RecordOpen for the click counter and CLICKED status.
func (e *Email) RecordClick() {
	now := time.Now()
	e.ClickCount++
	if e.ClickedAt == nil {
		e.ClickedAt = &now
	}
	e.advance(StatusClicked)
	e.UpdatedAt = now
}

// RecordReply pins RepliedAt on the first reply and moves to REPLIED when
// the current status permits it.
func (e *Email) RecordReply() {
	now := time.Now()
	if e.RepliedAt == nil {
		e.RepliedAt = &now
	}
	e.advance(StatusReplied)
	e.UpdatedAt = now
}

// RecordBounce moves to BOUNCED when the current status permits it.
func (e *Email) RecordBounce() {
	e.advance(StatusBounced)
	e.UpdatedAt = time.Now()
}

func (e *Email) transition(target Status) error {
	if err := Machine.Transition(e.Status, target); err != nil {
		return err
	}
	e.Status = target
	e.UpdatedAt = time.Now()
	return nil
}

// advance applies the transition when legal and silently keeps the current
// status otherwise.
func (e *Email) advance(target Status) {
	if Machine.CanTransition(e.Status, target) {
		e.Status = target
	}
}
