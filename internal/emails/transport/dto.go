package transport

import "github.com/google/uuid"

// CreateEmailRequest contains data for drafting an outreach email.
type CreateEmailRequest struct {
	LeadID       uuid.UUID `json:"leadId" validate:"required"`
	Subject      string    `json:"subject" validate:"required,min=1,max=300"`
	BodyText     string    `json:"bodyText" validate:"required,min=1"`
	SequenceStep string    `json:"sequenceStep" validate:"required"`
}

// ListEmailsRequest filters and paginates email listings.
type ListEmailsRequest struct {
	LeadID *uuid.UUID `form:"leadId"`
	Status *string    `form:"status"`
	Skip   int        `form:"skip" validate:"min=0"`
	Limit  int        `form:"limit" validate:"min=0,max=200"`
}

// ScheduleEmailRequest defers a draft's delivery to the background worker.
// SendAt is RFC3339; omitted means deliver as soon as the worker is free.
type ScheduleEmailRequest struct {
	SendAt *string `json:"sendAt,omitempty"`
}

// ScheduleEmailResponse acknowledges a scheduled delivery.
type ScheduleEmailResponse struct {
	EmailID      uuid.UUID `json:"emailId"`
	TaskID       string    `json:"taskId"`
	ScheduledFor *string   `json:"scheduledFor,omitempty"`
}

// EmailResponse represents an email in API responses.
type EmailResponse struct {
	ID           uuid.UUID `json:"id"`
	LeadID       uuid.UUID `json:"leadId"`
	Subject      string    `json:"subject"`
	BodyText     string    `json:"bodyText"`
	Status       string    `json:"status"`
	SequenceStep string    `json:"sequenceStep"`
	TrackingID   uuid.UUID `json:"trackingId"`
	OpenCount    int       `json:"openCount"`
	ClickCount   int       `json:"clickCount"`
	SentAt       *string   `json:"sentAt,omitempty"`
	OpenedAt     *string   `json:"openedAt,omitempty"`
	ClickedAt    *string   `json:"clickedAt,omitempty"`
	RepliedAt    *string   `json:"repliedAt,omitempty"`
	CreatedAt    string    `json:"createdAt"`
	UpdatedAt    string    `json:"updatedAt"`
}

// EmailListResponse wraps a paginated list of emails.
type EmailListResponse struct {
	Items []EmailResponse `json:"items"`
	Total int             `json:"total"`
}
