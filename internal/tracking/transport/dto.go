package transport

import "github.com/google/uuid"

// WebhookRequest carries the free-form payload of a reply/bounce webhook.
type WebhookRequest struct {
	ExtraData map[string]any `json:"extraData,omitempty"`
}

// ListEventsRequest paginates the event log of one email.
type ListEventsRequest struct {
	EmailID uuid.UUID `form:"emailId" validate:"required"`
	Skip    int       `form:"skip" validate:"min=0"`
	Limit   int       `form:"limit" validate:"min=0,max=200"`
}

// EventResponse represents one engagement event in API responses.
type EventResponse struct {
	ID         uuid.UUID      `json:"id"`
	EmailID    uuid.UUID      `json:"emailId"`
	EventType  string         `json:"eventType"`
	IPAddress  *string        `json:"ipAddress,omitempty"`
	UserAgent  *string        `json:"userAgent,omitempty"`
	Referer    *string        `json:"referer,omitempty"`
	ClickedURL *string        `json:"clickedUrl,omitempty"`
	ExtraData  map[string]any `json:"extraData,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// EventListResponse wraps a paginated event log.
type EventListResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}

// CountsResponse maps event types to their counts. Absent types are omitted.
type CountsResponse struct {
	Counts map[string]int `json:"counts"`
}

// StatsResponse carries the derived engagement statistics.
type StatsResponse struct {
	SentCount    int     `json:"sentCount"`
	UniqueOpens  int     `json:"uniqueOpens"`
	UniqueClicks int     `json:"uniqueClicks"`
	Replies      int     `json:"replies"`
	Bounces      int     `json:"bounces"`
	OpenRate     float64 `json:"openRate"`
	ClickRate    float64 `json:"clickRate"`
	ReplyRate    float64 `json:"replyRate"`
	BounceRate   float64 `json:"bounceRate"`
}
