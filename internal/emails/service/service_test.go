package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/emails/domain"
	"outreach_backend/internal/emails/repository"
	"outreach_backend/internal/emails/transport"
	"outreach_backend/internal/events"
	"outreach_backend/internal/mailer"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	emails map[uuid.UUID]domain.Email
}

func newFakeStore() *fakeStore {
	return &fakeStore{emails: make(map[uuid.UUID]domain.Email)}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateParams) (domain.Email, error) {
	e := domain.Email{
		ID:           uuid.New(),
		LeadID:       params.LeadID,
		Subject:      params.Subject,
		BodyText:     params.BodyText,
		Status:       domain.StatusDraft,
		SequenceStep: params.SequenceStep,
		TrackingID:   params.TrackingID,
	}
	f.emails[e.ID] = e
	return e, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (domain.Email, error) {
	e, ok := f.emails[id]
	if !ok {
		return domain.Email{}, repository.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) GetByTrackingID(_ context.Context, trackingID uuid.UUID) (domain.Email, error) {
	for _, e := range f.emails {
		if e.TrackingID == trackingID {
			return e, nil
		}
	}
	return domain.Email{}, repository.ErrNotFound
}

func (f *fakeStore) List(_ context.Context, _ repository.ListParams) ([]domain.Email, int, error) {
	out := make([]domain.Email, 0, len(f.emails))
	for _, e := range f.emails {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeStore) cas(id uuid.UUID, from, to domain.Status) (domain.Email, error) {
	e, ok := f.emails[id]
	if !ok {
		return domain.Email{}, repository.ErrNotFound
	}
	if e.Status != from {
		return domain.Email{}, repository.ErrStaleStatus
	}
	e.Status = to
	f.emails[id] = e
	return e, nil
}

func (f *fakeStore) Queue(_ context.Context, id uuid.UUID) (domain.Email, error) {
	return f.cas(id, domain.StatusDraft, domain.StatusPending)
}

func (f *fakeStore) MarkSent(_ context.Context, id uuid.UUID) (domain.Email, error) {
	return f.cas(id, domain.StatusPending, domain.StatusSent)
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID) (domain.Email, error) {
	return f.cas(id, domain.StatusPending, domain.StatusFailed)
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.emails[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.emails, id)
	return nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeLeads struct {
	contact    Contact
	contactErr error
	sequenced  []uuid.UUID
}

func (f *fakeLeads) ContactFor(_ context.Context, _ uuid.UUID) (Contact, error) {
	if f.contactErr != nil {
		return Contact{}, f.contactErr
	}
	return f.contact, nil
}

func (f *fakeLeads) MarkSequenced(_ context.Context, id uuid.UUID) error {
	f.sequenced = append(f.sequenced, id)
	return nil
}

type fakeEnqueuer struct {
	taskID  string
	err     error
	emailID uuid.UUID
	runAt   time.Time
	calls   int
}

func (f *fakeEnqueuer) EnqueueEmailSend(_ context.Context, emailID uuid.UUID, runAt time.Time) (string, error) {
	f.calls++
	f.emailID = emailID
	f.runAt = runAt
	if f.err != nil {
		return "", f.err
	}
	return f.taskID, nil
}

type capturingBus struct {
	published []events.Event
}

func (b *capturingBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}
func (b *capturingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *capturingBus) Subscribe(string, events.Handler) {}

func draft(t *testing.T, svc *Service) transport.EmailResponse {
	t.Helper()
	created, err := svc.Create(context.Background(), transport.CreateEmailRequest{
		LeadID:       uuid.New(),
		Subject:      "Quick question",
		BodyText:     "Hi,\n\nSee https://example.com/pricing for details.",
		SequenceStep: "initial",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created
}

func TestSendDeliversAndSequencesLead(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	companyID := uuid.New()
	leads := &fakeLeads{contact: Contact{Email: "a@x.com", Name: "Ada Lovelace", CompanyID: companyID}}
	bus := &capturingBus{}
	svc := New(store, leads, sender, &fakeEnqueuer{}, bus, logger.New("test"), "https://track.example.com/")

	created := draft(t, svc)
	sent, err := svc.Send(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if sent.Status != string(domain.StatusSent) {
		t.Fatalf("status = %q, want %q", sent.Status, domain.StatusSent)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sender called %d times, want 1", len(sender.sent))
	}
	if len(leads.sequenced) != 1 || leads.sequenced[0] != created.LeadID {
		t.Fatalf("lead not sequenced: %v", leads.sequenced)
	}

	var sentEvent *events.EmailSent
	for _, e := range bus.published {
		if ev, ok := e.(events.EmailSent); ok {
			sentEvent = &ev
		}
	}
	if sentEvent == nil {
		t.Fatal("emails.sent not published")
	}
	if sentEvent.LeadID != created.LeadID {
		t.Fatalf("event lead id = %s, want %s", sentEvent.LeadID, created.LeadID)
	}
	if sentEvent.CompanyID != companyID {
		t.Fatalf("event company id = %s, want %s", sentEvent.CompanyID, companyID)
	}
}

func TestScheduleEnqueuesDraft(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{taskID: "task-42"}
	svc := New(store, &fakeLeads{}, &fakeSender{}, enqueuer, &capturingBus{}, logger.New("test"), "")

	created := draft(t, svc)
	sendAt := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	sendAtStr := sendAt.Format(time.RFC3339)

	result, err := svc.Schedule(context.Background(), created.ID, transport.ScheduleEmailRequest{SendAt: &sendAtStr})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if result.TaskID != "task-42" {
		t.Fatalf("task id = %q, want task-42", result.TaskID)
	}
	if enqueuer.calls != 1 || enqueuer.emailID != created.ID {
		t.Fatalf("enqueuer calls = %d for %s, want 1 for %s", enqueuer.calls, enqueuer.emailID, created.ID)
	}
	if !enqueuer.runAt.Equal(sendAt) {
		t.Fatalf("run at = %v, want %v", enqueuer.runAt, sendAt)
	}
	if result.ScheduledFor == nil || *result.ScheduledFor != sendAtStr {
		t.Fatalf("scheduled for = %v, want %s", result.ScheduledFor, sendAtStr)
	}

	// the worker performs the queue transition, not the schedule call
	e, _ := store.GetByID(context.Background(), created.ID)
	if e.Status != domain.StatusDraft {
		t.Fatalf("status = %q, want %q", e.Status, domain.StatusDraft)
	}
}

func TestScheduleWithoutSendAtEnqueuesImmediately(t *testing.T) {
	enqueuer := &fakeEnqueuer{taskID: "task-1"}
	svc := New(newFakeStore(), &fakeLeads{}, &fakeSender{}, enqueuer, &capturingBus{}, logger.New("test"), "")

	created := draft(t, svc)
	result, err := svc.Schedule(context.Background(), created.ID, transport.ScheduleEmailRequest{})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !enqueuer.runAt.IsZero() {
		t.Fatalf("run at = %v, want zero for immediate delivery", enqueuer.runAt)
	}
	if result.ScheduledFor != nil {
		t.Fatalf("scheduled for = %q, want nil", *result.ScheduledFor)
	}
}

func TestScheduleRejectsNonDraft(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{}
	svc := New(store, &fakeLeads{contact: Contact{Email: "a@x.com"}}, &fakeSender{}, enqueuer, &capturingBus{}, logger.New("test"), "")

	created := draft(t, svc)
	if _, err := svc.Send(context.Background(), created.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, err := svc.Schedule(context.Background(), created.ID, transport.ScheduleEmailRequest{})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict (err: %v)", apperr.GetKind(err), err)
	}
	if enqueuer.calls != 0 {
		t.Fatal("non-draft email enqueued")
	}
}

func TestScheduleRejectsBadTimestamp(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	svc := New(newFakeStore(), &fakeLeads{}, &fakeSender{}, enqueuer, &capturingBus{}, logger.New("test"), "")

	created := draft(t, svc)
	bad := "tomorrow-ish"
	_, err := svc.Schedule(context.Background(), created.ID, transport.ScheduleEmailRequest{SendAt: &bad})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want Validation (err: %v)", apperr.GetKind(err), err)
	}
	if enqueuer.calls != 0 {
		t.Fatal("unparseable timestamp enqueued")
	}
}

func TestSendRewritesLinksAndAppendsPixel(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	leads := &fakeLeads{contact: Contact{Email: "a@x.com"}}
	svc := New(store, leads, sender, &fakeEnqueuer{}, &capturingBus{}, logger.New("test"), "https://track.example.com")

	created := draft(t, svc)
	if _, err := svc.Send(context.Background(), created.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := sender.sent[0].HTMLBody
	token := created.TrackingID.String()
	if !strings.Contains(body, "https://track.example.com/t/open/"+token) {
		t.Fatalf("pixel URL missing from body: %s", body)
	}
	if !strings.Contains(body, "https://track.example.com/t/click/"+token+"?url=") {
		t.Fatalf("click redirect missing from body: %s", body)
	}
	if strings.Contains(body, `href="https://example.com/pricing"`) {
		t.Fatal("raw link left unwrapped")
	}
}

func TestSendFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{err: errors.New("connection refused")}
	leads := &fakeLeads{contact: Contact{Email: "a@x.com"}}
	svc := New(store, leads, sender, &fakeEnqueuer{}, &capturingBus{}, logger.New("test"), "https://track.example.com")

	created := draft(t, svc)
	result, err := svc.Send(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Status != string(domain.StatusFailed) {
		t.Fatalf("status = %q, want %q", result.Status, domain.StatusFailed)
	}
	if len(leads.sequenced) != 0 {
		t.Fatal("lead sequenced despite failed delivery")
	}
}

func TestSendTwiceConflicts(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	leads := &fakeLeads{contact: Contact{Email: "a@x.com"}}
	svc := New(store, leads, sender, &fakeEnqueuer{}, &capturingBus{}, logger.New("test"), "https://track.example.com")

	created := draft(t, svc)
	if _, err := svc.Send(context.Background(), created.ID); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	_, err := svc.Send(context.Background(), created.ID)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict (err: %v)", apperr.GetKind(err), err)
	}
}

func TestCreateRejectsUnknownStep(t *testing.T) {
	svc := New(newFakeStore(), &fakeLeads{}, &fakeSender{}, &fakeEnqueuer{}, &capturingBus{}, logger.New("test"), "")
	_, err := svc.Create(context.Background(), transport.CreateEmailRequest{
		LeadID:       uuid.New(),
		Subject:      "s",
		BodyText:     "b",
		SequenceStep: "step_nine",
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want Validation (err: %v)", apperr.GetKind(err), err)
	}
}
