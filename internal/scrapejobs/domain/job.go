// Package domain provides core business rules for the scrape job context.
package domain

import (
	"time"

	companydomain "outreach_backend/internal/companies/domain"
	"outreach_backend/internal/statemachine"

	"github.com/google/uuid"
)

// Status is the scrape job lifecycle status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Machine declares the scrape job transition table. COMPLETED, FAILED, and
// CANCELLED are terminal.
var Machine = statemachine.New(
	"scrape_job",
	StatusPending,
	map[Status][]Status{
		StatusPending: {StatusRunning, StatusCancelled},
		StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
	},
)

// Job is one company discovery run against an external source.
type Job struct {
	ID                uuid.UUID
	Source            companydomain.Source
	Keywords          []string
	Filters           map[string]any
	Status            Status
	ResultsCount      int
	NewCompaniesCount int
	DuplicateCount    int
	ErrorMessage      *string
	// TaskID is the opaque handle of the background task executing this job.
	TaskID      *string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Start moves the job into execution and stamps started_at.
func (j *Job) Start() error {
	if err := Machine.Transition(j.Status, StatusRunning); err != nil {
		return err
	}
	now := time.Now()
	j.Status = StatusRunning
	j.StartedAt = &now
	return nil
}

// Complete records a successful run. The three counters are stored verbatim.
func (j *Job) Complete(resultsCount, newCount, duplicateCount int) error {
	if err := Machine.Transition(j.Status, StatusCompleted); err != nil {
		return err
	}
	now := time.Now()
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.ResultsCount = resultsCount
	j.NewCompaniesCount = newCount
	j.DuplicateCount = duplicateCount
	return nil
}

// Fail records a failed run with its error message.
func (j *Job) Fail(msg string) error {
	if err := Machine.Transition(j.Status, StatusFailed); err != nil {
		return err
	}
	now := time.Now()
	j.Status = StatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = &msg
	return nil
}

// Cancel aborts a pending or running job.
func (j *Job) Cancel() error {
	if err := Machine.Transition(j.Status, StatusCancelled); err != nil {
		return err
	}
	j.Status = StatusCancelled
	return nil
}

// DurationSeconds is nil before the job started, the elapsed run time while
// running, and the fixed total once completed.
func (j *Job) DurationSeconds() *float64 {
	if j.StartedAt == nil {
		return nil
	}
	end := time.Now()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	d := end.Sub(*j.StartedAt).Seconds()
	return &d
}
