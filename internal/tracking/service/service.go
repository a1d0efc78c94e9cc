package service

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/tracking/domain"
	"outreach_backend/internal/tracking/repository"
	"outreach_backend/internal/tracking/transport"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence boundary the service needs. The concrete
// implementation is repository.Repository.
type Store interface {
	ResolveTrackingID(ctx context.Context, token uuid.UUID) (emailID, leadID uuid.UUID, err error)
	Record(ctx context.Context, ev domain.Event) (domain.Event, error)
	ListByEmail(ctx context.Context, emailID uuid.UUID, skip, limit int) ([]domain.Event, int, error)
	CountByType(ctx context.Context, emailID *uuid.UUID) (map[domain.EventType]int, error)
	UniqueOpens(ctx context.Context, emailID uuid.UUID) (int, error)
	CollectStats(ctx context.Context, emailID *uuid.UUID) (repository.StatsCounts, error)
}

// Service records engagement signals and aggregates them into statistics.
type Service struct {
	repo Store
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new tracking service.
func New(repo Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// RequestMeta carries the origin attributes of a pixel or redirect hit.
type RequestMeta struct {
	IPAddress *string
	UserAgent *string
	Referer   *string
}

// RecordOpen appends an OPEN event for the email behind the tracking token.
func (s *Service) RecordOpen(ctx context.Context, token uuid.UUID, meta RequestMeta) error {
	emailID, leadID, err := s.repo.ResolveTrackingID(ctx, token)
	if err != nil {
		return mapStoreErr(err)
	}
	return s.record(ctx, domain.NewOpenEvent(emailID, meta.IPAddress, meta.UserAgent, meta.Referer), leadID)
}

// RecordClick appends a CLICK event for the email behind the tracking token.
func (s *Service) RecordClick(ctx context.Context, token uuid.UUID, clickedURL string, meta RequestMeta) error {
	emailID, leadID, err := s.repo.ResolveTrackingID(ctx, token)
	if err != nil {
		return mapStoreErr(err)
	}
	ev, err := domain.NewClickEvent(emailID, clickedURL, meta.IPAddress, meta.UserAgent, meta.Referer)
	if err != nil {
		return err
	}
	return s.record(ctx, ev, leadID)
}

// RecordReply appends a REPLY event for the email behind the tracking token.
func (s *Service) RecordReply(ctx context.Context, token uuid.UUID, extraData map[string]any) error {
	emailID, leadID, err := s.repo.ResolveTrackingID(ctx, token)
	if err != nil {
		return mapStoreErr(err)
	}
	return s.record(ctx, domain.NewReplyEvent(emailID, extraData), leadID)
}

// RecordBounce appends a BOUNCE event for the email behind the tracking token.
func (s *Service) RecordBounce(ctx context.Context, token uuid.UUID, extraData map[string]any) error {
	emailID, leadID, err := s.repo.ResolveTrackingID(ctx, token)
	if err != nil {
		return mapStoreErr(err)
	}
	return s.record(ctx, domain.NewBounceEvent(emailID, extraData), leadID)
}

func (s *Service) record(ctx context.Context, ev domain.Event, leadID uuid.UUID) error {
	stored, err := s.repo.Record(ctx, ev)
	if err != nil {
		return mapStoreErr(err)
	}

	s.log.Debug("tracking event recorded", "emailId", stored.EmailID, "type", stored.EventType)
	if s.bus != nil {
		s.bus.Publish(ctx, events.EmailEngaged{
			BaseEvent: events.NewBaseEvent(),
			EmailID:   stored.EmailID,
			LeadID:    leadID,
			EventType: string(stored.EventType),
		})
	}
	return nil
}

// ListByEmail returns the event log of one email, newest first.
func (s *Service) ListByEmail(ctx context.Context, req transport.ListEventsRequest) (transport.EventListResponse, error) {
	items, total, err := s.repo.ListByEmail(ctx, req.EmailID, req.Skip, req.Limit)
	if err != nil {
		return transport.EventListResponse{}, mapStoreErr(err)
	}

	out := make([]transport.EventResponse, 0, len(items))
	for _, ev := range items {
		out = append(out, toResponse(ev))
	}
	return transport.EventListResponse{Items: out, Total: total}, nil
}

// CountByType groups events by type, optionally scoped to one email. Absent
// types are omitted; callers default to zero.
func (s *Service) CountByType(ctx context.Context, emailID *uuid.UUID) (transport.CountsResponse, error) {
	counts, err := s.repo.CountByType(ctx, emailID)
	if err != nil {
		return transport.CountsResponse{}, mapStoreErr(err)
	}

	out := make(map[string]int, len(counts))
	for eventType, count := range counts {
		out[string(eventType)] = count
	}
	return transport.CountsResponse{Counts: out}, nil
}

// UniqueOpens counts distinct origin addresses among opens for one email.
func (s *Service) UniqueOpens(ctx context.Context, emailID uuid.UUID) (int, error) {
	count, err := s.repo.UniqueOpens(ctx, emailID)
	if err != nil {
		return 0, mapStoreErr(err)
	}
	return count, nil
}

// Stats derives engagement rates, optionally scoped to one email.
func (s *Service) Stats(ctx context.Context, emailID *uuid.UUID) (transport.StatsResponse, error) {
	counts, err := s.repo.CollectStats(ctx, emailID)
	if err != nil {
		return transport.StatsResponse{}, mapStoreErr(err)
	}
	return computeStats(counts), nil
}

// computeStats derives rates from raw counters. Every rate is 0.0 when
// nothing was sent.
func computeStats(c repository.StatsCounts) transport.StatsResponse {
	stats := transport.StatsResponse{
		SentCount:    c.SentCount,
		UniqueOpens:  c.UniqueOpens,
		UniqueClicks: c.UniqueClicks,
		Replies:      c.Replies,
		Bounces:      c.Bounces,
	}
	if c.SentCount == 0 {
		return stats
	}
	sent := float64(c.SentCount)
	stats.OpenRate = float64(c.UniqueOpens) / sent
	stats.ClickRate = float64(c.UniqueClicks) / sent
	stats.ReplyRate = float64(c.Replies) / sent
	stats.BounceRate = float64(c.Bounces) / sent
	return stats
}

func mapStoreErr(err error) error {
	if errors.Is(err, repository.ErrEmailNotFound) {
		return apperr.NotFound("email not found")
	}
	return err
}

func toResponse(ev domain.Event) transport.EventResponse {
	return transport.EventResponse{
		ID:         ev.ID,
		EmailID:    ev.EmailID,
		EventType:  string(ev.EventType),
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
		Referer:    ev.Referer,
		ClickedURL: ev.ClickedURL,
		ExtraData:  ev.ExtraData,
		Timestamp:  ev.Timestamp.Format(time.RFC3339),
	}
}
