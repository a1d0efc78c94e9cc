package transport

import "github.com/google/uuid"

// CreateJobRequest contains data for launching a scrape job.
type CreateJobRequest struct {
	Source   string         `json:"source" validate:"required"`
	Keywords []string       `json:"keywords,omitempty" validate:"omitempty,max=20,dive,min=1,max=100"`
	Filters  map[string]any `json:"filters,omitempty"`
}

// ListJobsRequest filters and paginates job listings.
type ListJobsRequest struct {
	Status *string `form:"status"`
	Skip   int     `form:"skip" validate:"min=0"`
	Limit  int     `form:"limit" validate:"min=0,max=200"`
}

// JobResponse represents a scrape job in API responses.
type JobResponse struct {
	ID                uuid.UUID      `json:"id"`
	Source            string         `json:"source"`
	Keywords          []string       `json:"keywords,omitempty"`
	Filters           map[string]any `json:"filters,omitempty"`
	Status            string         `json:"status"`
	ResultsCount      int            `json:"resultsCount"`
	NewCompaniesCount int            `json:"newCompaniesCount"`
	DuplicateCount    int            `json:"duplicateCount"`
	ErrorMessage      *string        `json:"errorMessage,omitempty"`
	TaskID            *string        `json:"taskId,omitempty"`
	DurationSeconds   *float64       `json:"durationSeconds,omitempty"`
	CreatedAt         string         `json:"createdAt"`
	StartedAt         *string        `json:"startedAt,omitempty"`
	CompletedAt       *string        `json:"completedAt,omitempty"`
}

// JobListResponse wraps a paginated list of jobs.
type JobListResponse struct {
	Items []JobResponse `json:"items"`
	Total int           `json:"total"`
}
