package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"outreach_backend/internal/emails/domain"
	"outreach_backend/internal/emails/repository"
	"outreach_backend/internal/emails/transport"
	"outreach_backend/internal/events"
	"outreach_backend/internal/mailer"
	"outreach_backend/internal/statemachine"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence boundary the service needs. The concrete
// implementation is repository.Repository.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (domain.Email, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Email, error)
	GetByTrackingID(ctx context.Context, trackingID uuid.UUID) (domain.Email, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Email, int, error)
	Queue(ctx context.Context, id uuid.UUID) (domain.Email, error)
	MarkSent(ctx context.Context, id uuid.UUID) (domain.Email, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (domain.Email, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Contact is the recipient resolved from the owning lead.
type Contact struct {
	Email     string
	Name      string
	CompanyID uuid.UUID
}

// LeadGateway is the boundary to the leads module: resolving the recipient
// and advancing the lead into the sequence on first send.
type LeadGateway interface {
	ContactFor(ctx context.Context, leadID uuid.UUID) (Contact, error)
	MarkSequenced(ctx context.Context, leadID uuid.UUID) error
}

// TaskEnqueuer dispatches deferred sends to the worker. The concrete
// implementation is scheduler.Client.
type TaskEnqueuer interface {
	EnqueueEmailSend(ctx context.Context, emailID uuid.UUID, runAt time.Time) (string, error)
}

// Service provides business logic for outreach emails.
type Service struct {
	repo            Store
	leads           LeadGateway
	sender          mailer.Sender
	enqueuer        TaskEnqueuer
	bus             events.Bus
	log             *logger.Logger
	trackingBaseURL string
}

// New creates a new emails service. trackingBaseURL is the public origin the
// pixel and click redirect URLs are rooted at.
func New(repo Store, leads LeadGateway, sender mailer.Sender, enqueuer TaskEnqueuer, bus events.Bus, log *logger.Logger, trackingBaseURL string) *Service {
	return &Service{
		repo:            repo,
		leads:           leads,
		sender:          sender,
		enqueuer:        enqueuer,
		bus:             bus,
		log:             log,
		trackingBaseURL: strings.TrimRight(trackingBaseURL, "/"),
	}
}

// Create drafts an outreach email for a lead with a fresh tracking token.
func (s *Service) Create(ctx context.Context, req transport.CreateEmailRequest) (transport.EmailResponse, error) {
	step := domain.SequenceStep(req.SequenceStep)
	if !domain.IsKnownStep(step) {
		return transport.EmailResponse{}, apperr.Validation("unknown sequence step")
	}

	e, err := s.repo.Create(ctx, repository.CreateParams{
		LeadID:       req.LeadID,
		Subject:      req.Subject,
		BodyText:     req.BodyText,
		SequenceStep: step,
		TrackingID:   domain.NewTrackingID(),
	})
	if err != nil {
		return transport.EmailResponse{}, mapStoreErr(err)
	}
	return toResponse(e), nil
}

// GetByID returns one email.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.EmailResponse, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.EmailResponse{}, mapStoreErr(err)
	}
	return toResponse(e), nil
}

// List returns emails filtered by lead and status.
func (s *Service) List(ctx context.Context, req transport.ListEmailsRequest) (transport.EmailListResponse, error) {
	params := repository.ListParams{LeadID: req.LeadID, Skip: req.Skip, Limit: req.Limit}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		params.Status = &status
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.EmailListResponse{}, mapStoreErr(err)
	}

	out := make([]transport.EmailResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toResponse(e))
	}
	return transport.EmailListResponse{Items: out, Total: total}, nil
}

// Send queues a draft, renders it with tracking instrumentation, and
// delivers it via SMTP. Delivery failure lands the email in FAILED; success
// stamps sent_at, publishes emails.sent, and advances the lead into the
// sequence.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (transport.EmailResponse, error) {
	queued, err := s.repo.Queue(ctx, id)
	if err != nil {
		return transport.EmailResponse{}, mapStoreErr(err)
	}

	contact, err := s.leads.ContactFor(ctx, queued.LeadID)
	if err != nil {
		if _, failErr := s.repo.MarkFailed(ctx, id); failErr != nil {
			s.log.Error("mark failed after contact lookup", "emailId", id, "error", failErr)
		}
		return transport.EmailResponse{}, err
	}

	msg := mailer.Message{
		To:       contact.Email,
		ToName:   contact.Name,
		Subject:  queued.Subject,
		TextBody: queued.BodyText,
		HTMLBody: s.renderTrackedHTML(queued),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.log.Error("email delivery failed", "emailId", id, "error", err)
		failed, failErr := s.repo.MarkFailed(ctx, id)
		if failErr != nil {
			return transport.EmailResponse{}, mapStoreErr(failErr)
		}
		return toResponse(failed), nil
	}

	sent, err := s.repo.MarkSent(ctx, id)
	if err != nil {
		return transport.EmailResponse{}, mapStoreErr(err)
	}

	if err := s.leads.MarkSequenced(ctx, sent.LeadID); err != nil {
		s.log.Warn("lead not sequenced after send", "leadId", sent.LeadID, "error", err)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.EmailSent{
			BaseEvent:    events.NewBaseEvent(),
			EmailID:      sent.ID,
			LeadID:       sent.LeadID,
			CompanyID:    contact.CompanyID,
			SequenceStep: string(sent.SequenceStep),
		})
	}
	return toResponse(sent), nil
}

// Schedule hands a draft to the background worker for delivery, optionally
// deferred to a caller-supplied instant for cadence spacing. The draft stays
// DRAFT until the worker picks it up; Send performs the queue transition.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, req transport.ScheduleEmailRequest) (transport.ScheduleEmailResponse, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ScheduleEmailResponse{}, mapStoreErr(err)
	}
	if e.Status != domain.StatusDraft {
		return transport.ScheduleEmailResponse{}, apperr.Conflict("only draft emails can be scheduled")
	}

	var runAt time.Time
	if req.SendAt != nil && *req.SendAt != "" {
		runAt, err = time.Parse(time.RFC3339, *req.SendAt)
		if err != nil {
			return transport.ScheduleEmailResponse{}, apperr.Validation("sendAt must be RFC3339")
		}
	}

	taskID, err := s.enqueuer.EnqueueEmailSend(ctx, id, runAt)
	if err != nil {
		s.log.Error("email send enqueue failed", "emailId", id, "error", err)
		return transport.ScheduleEmailResponse{}, apperr.Internal("failed to schedule email send")
	}

	s.log.Info("email send scheduled", "emailId", id, "taskId", taskID)
	resp := transport.ScheduleEmailResponse{EmailID: id, TaskID: taskID}
	if !runAt.IsZero() {
		scheduledFor := runAt.Format(time.RFC3339)
		resp.ScheduledFor = &scheduledFor
	}
	return resp, nil
}

// Delete removes an email and its tracking history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// renderTrackedHTML turns the plain text body into simple HTML with links
// rewritten through the click redirect and the open pixel appended.
func (s *Service) renderTrackedHTML(e domain.Email) string {
	token := e.TrackingID.String()

	var b strings.Builder
	for _, para := range strings.Split(e.BodyText, "\n\n") {
		escaped := html.EscapeString(strings.TrimSpace(para))
		if escaped == "" {
			continue
		}
		escaped = strings.ReplaceAll(escaped, "\n", "<br>")
		linked := urlPattern.ReplaceAllStringFunc(escaped, func(raw string) string {
			redirect := fmt.Sprintf("%s/t/click/%s?url=%s", s.trackingBaseURL, token, url.QueryEscape(raw))
			return fmt.Sprintf(`<a href="%s">%s</a>`, redirect, raw)
		})
		b.WriteString("<p>" + linked + "</p>\n")
	}
	b.WriteString(fmt.Sprintf(`<img src="%s/t/open/%s" width="1" height="1" alt="">`, s.trackingBaseURL, token))
	return b.String()
}

func mapStoreErr(err error) error {
	var invalid *statemachine.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		return apperr.Wrap(apperr.KindConflict, invalid.Error(), err)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("email not found")
	case errors.Is(err, repository.ErrStaleStatus):
		return apperr.Conflict("email was updated concurrently, retry")
	case errors.Is(err, repository.ErrDuplicateTrackingID):
		return apperr.Conflict("tracking id already exists")
	default:
		return err
	}
}

func toResponse(e domain.Email) transport.EmailResponse {
	return transport.EmailResponse{
		ID:           e.ID,
		LeadID:       e.LeadID,
		Subject:      e.Subject,
		BodyText:     e.BodyText,
		Status:       string(e.Status),
		SequenceStep: string(e.SequenceStep),
		TrackingID:   e.TrackingID,
		OpenCount:    e.OpenCount,
		ClickCount:   e.ClickCount,
		SentAt:       formatTime(e.SentAt),
		OpenedAt:     formatTime(e.OpenedAt),
		ClickedAt:    formatTime(e.ClickedAt),
		RepliedAt:    formatTime(e.RepliedAt),
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    e.UpdatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
