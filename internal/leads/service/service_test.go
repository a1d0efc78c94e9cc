package service

import (
	"context"
	"testing"

	"outreach_backend/internal/events"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leads/transport"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	leads map[uuid.UUID]domain.Lead
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]domain.Lead)}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateParams) (domain.Lead, error) {
	l := domain.Lead{
		ID:             uuid.New(),
		CompanyID:      params.CompanyID,
		FirstName:      params.FirstName,
		LastName:       params.LastName,
		Email:          params.Email,
		JobTitle:       params.JobTitle,
		Classification: domain.ClassificationUnscored,
		Status:         domain.StatusNew,
	}
	f.leads[l.ID] = l
	return l, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (domain.Lead, error) {
	for _, l := range f.leads {
		if l.Email != nil && *l.Email == email {
			return l, nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (f *fakeStore) List(_ context.Context, _ repository.ListParams) ([]domain.Lead, int, error) {
	out := make([]domain.Lead, 0, len(f.leads))
	for _, l := range f.leads {
		out = append(out, l)
	}
	return out, len(out), nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.Status) (domain.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if l.Status != from {
		return domain.Lead{}, repository.ErrStaleStatus
	}
	l.Status = to
	f.leads[id] = l
	return l, nil
}

func (f *fakeStore) UpdateScore(_ context.Context, lead domain.Lead, from domain.Status) (domain.Lead, error) {
	stored, ok := f.leads[lead.ID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if stored.Status != from {
		return domain.Lead{}, repository.ErrStaleStatus
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, params repository.UpdateParams) (domain.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if params.FirstName != nil {
		l.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		l.LastName = *params.LastName
	}
	if params.Email != nil {
		l.Email = params.Email
	}
	if params.JobTitle != nil {
		l.JobTitle = params.JobTitle
	}
	f.leads[id] = l
	return l, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.leads, id)
	return nil
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

func (b *capturingBus) names() []string {
	out := make([]string, 0, len(b.published))
	for _, e := range b.published {
		out = append(out, e.EventName())
	}
	return out
}

func newTestService(store Store, bus events.Bus) *Service {
	return New(store, bus, logger.New("test"))
}

func TestScoreQualifiesAndPublishes(t *testing.T) {
	store := newFakeStore()
	bus := &capturingBus{}
	svc := newTestService(store, bus)

	created, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		CompanyID: uuid.New(),
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	scored, err := svc.Score(context.Background(), created.ID, transport.ScoreLeadRequest{Score: 80})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if scored.Status != string(domain.StatusQualified) {
		t.Fatalf("status = %q, want %q", scored.Status, domain.StatusQualified)
	}
	if scored.Classification != string(domain.ClassificationHot) {
		t.Fatalf("classification = %q, want %q", scored.Classification, domain.ClassificationHot)
	}

	names := bus.names()
	wantNames := map[string]bool{"leads.created": false, "leads.scored": false, "leads.qualified": false}
	for _, n := range names {
		wantNames[n] = true
	}
	for name, seen := range wantNames {
		if !seen {
			t.Fatalf("event %q not published, got %v", name, names)
		}
	}
}

func TestScoreBelowQualifyDoesNotPublishQualified(t *testing.T) {
	store := newFakeStore()
	bus := &capturingBus{}
	svc := newTestService(store, bus)

	created, err := svc.Create(context.Background(), transport.CreateLeadRequest{CompanyID: uuid.New()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	scored, err := svc.Score(context.Background(), created.ID, transport.ScoreLeadRequest{Score: 40})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if scored.Status != string(domain.StatusScored) {
		t.Fatalf("status = %q, want %q", scored.Status, domain.StatusScored)
	}

	for _, n := range bus.names() {
		if n == "leads.qualified" {
			t.Fatal("leads.qualified published for a non-qualifying score")
		}
	}
}

func TestScoreUnknownLeadIsNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), &capturingBus{})

	_, err := svc.Score(context.Background(), uuid.New(), transport.ScoreLeadRequest{Score: 80})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want NotFound (err: %v)", apperr.GetKind(err), err)
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &capturingBus{})

	created, err := svc.Create(context.Background(), transport.CreateLeadRequest{CompanyID: uuid.New()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), created.ID, transport.UpdateStatusRequest{Status: "converted"})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict (err: %v)", apperr.GetKind(err), err)
	}
}
