// Package domain provides the append-only engagement event log records.
package domain

import (
	"time"

	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

// EventType is the kind of engagement signal.
type EventType string

const (
	EventOpen   EventType = "open"
	EventClick  EventType = "click"
	EventReply  EventType = "reply"
	EventBounce EventType = "bounce"
)

// Event is one immutable engagement record. Events are appended and never
// updated or deleted.
type Event struct {
	ID         uuid.UUID
	EmailID    uuid.UUID
	EventType  EventType
	IPAddress  *string
	UserAgent  *string
	Referer    *string
	ClickedURL *string
	ExtraData  map[string]any
	Timestamp  time.Time
}

// NewOpenEvent builds an OPEN record from a tracking pixel hit.
func NewOpenEvent(emailID uuid.UUID, ip, userAgent, referer *string) Event {
	return Event{
		EmailID:   emailID,
		EventType: EventOpen,
		IPAddress: ip,
		UserAgent: userAgent,
		Referer:   referer,
		Timestamp: time.Now(),
	}
}

// NewClickEvent builds a CLICK record from a redirect hit. The clicked URL
// is required.
func NewClickEvent(emailID uuid.UUID, clickedURL string, ip, userAgent, referer *string) (Event, error) {
	if clickedURL == "" {
		return Event{}, apperr.Validation("clicked_url is required for click events")
	}
	return Event{
		EmailID:    emailID,
		EventType:  EventClick,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Referer:    referer,
		ClickedURL: &clickedURL,
		Timestamp:  time.Now(),
	}, nil
}

// NewReplyEvent builds a REPLY record from an inbound reply webhook.
func NewReplyEvent(emailID uuid.UUID, extraData map[string]any) Event {
	return Event{
		EmailID:   emailID,
		EventType: EventReply,
		ExtraData: extraData,
		Timestamp: time.Now(),
	}
}

// NewBounceEvent builds a BOUNCE record from a delivery failure webhook.
func NewBounceEvent(emailID uuid.UUID, extraData map[string]any) Event {
	return Event{
		EmailID:   emailID,
		EventType: EventBounce,
		ExtraData: extraData,
		Timestamp: time.Now(),
	}
}
