package service

import (
	"context"
	"sync"
	"testing"

	"outreach_backend/internal/companies/domain"
	"outreach_backend/internal/companies/repository"
	"outreach_backend/internal/companies/transport"
	"outreach_backend/internal/events"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu        sync.Mutex
	companies map[uuid.UUID]*domain.Company
}

func newFakeStore() *fakeStore {
	return &fakeStore{companies: make(map[uuid.UUID]*domain.Company)}
}

func (f *fakeStore) byDomain(companyDomain string) *domain.Company {
	for _, c := range f.companies {
		if c.Domain != nil && *c.Domain == companyDomain {
			return c
		}
	}
	return nil
}

func (f *fakeStore) insert(params repository.CreateParams) *domain.Company {
	c := &domain.Company{
		ID:       uuid.New(),
		Name:     params.Name,
		Domain:   params.Domain,
		Source:   params.Source,
		Status:   domain.StatusNew,
		Industry: params.Industry,
	}
	f.companies[c.ID] = c
	return c
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateParams) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if params.Domain != nil && f.byDomain(*params.Domain) != nil {
		return domain.Company{}, repository.ErrDuplicateDomain
	}
	return *f.insert(params), nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[id]
	if !ok {
		return domain.Company{}, repository.ErrNotFound
	}
	return *c, nil
}

func (f *fakeStore) GetByDomain(_ context.Context, companyDomain string) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.byDomain(companyDomain); c != nil {
		return *c, nil
	}
	return domain.Company{}, repository.ErrNotFound
}

func (f *fakeStore) GetOrCreateByDomain(_ context.Context, params repository.CreateParams) (domain.Company, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if params.Domain != nil {
		if c := f.byDomain(*params.Domain); c != nil {
			return *c, false, nil
		}
	}
	return *f.insert(params), true, nil
}

func (f *fakeStore) List(_ context.Context, _ repository.ListParams) ([]domain.Company, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Company, 0, len(f.companies))
	for _, c := range f.companies {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.Status) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[id]
	if !ok {
		return domain.Company{}, repository.ErrNotFound
	}
	if c.Status != from {
		return domain.Company{}, repository.ErrStaleStatus
	}
	c.Status = to
	return *c, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, params repository.UpdateParams) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[id]
	if !ok {
		return domain.Company{}, repository.ErrNotFound
	}
	if params.Name != nil {
		c.Name = *params.Name
	}
	if params.Industry != nil {
		c.Industry = params.Industry
	}
	return *c, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.companies[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.companies, id)
	return nil
}

type capturingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *capturingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *capturingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *capturingBus) Subscribe(string, events.Handler) {}

func (b *capturingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

func strPtr(s string) *string { return &s }

func TestGetOrCreateByDomainDeduplicates(t *testing.T) {
	bus := &capturingBus{}
	svc := New(newFakeStore(), bus, logger.New("test"))

	first, err := svc.GetOrCreateByDomain(context.Background(), transport.CreateCompanyRequest{
		Name:   "Acme",
		Domain: strPtr("acme.com"),
		Source: "google_maps",
	})
	if err != nil {
		t.Fatalf("GetOrCreateByDomain: %v", err)
	}
	if !first.Created {
		t.Fatal("first ingestion should create")
	}

	second, err := svc.GetOrCreateByDomain(context.Background(), transport.CreateCompanyRequest{
		Name:   "Acme Corp",
		Domain: strPtr("acme.com"),
		Source: "linkedin",
	})
	if err != nil {
		t.Fatalf("GetOrCreateByDomain: %v", err)
	}
	if second.Created {
		t.Fatal("second ingestion of same domain should not create")
	}
	if second.Company.ID != first.Company.ID {
		t.Fatal("duplicate ingestion returned a different company")
	}
	if second.Company.Name != "Acme" {
		t.Fatalf("existing company fields should win, got name %q", second.Company.Name)
	}

	names := bus.names()
	if len(names) != 1 || names[0] != "companies.discovered" {
		t.Fatalf("events = %v, want one companies.discovered", names)
	}
}

func TestUpdateStatusWalksThePipeline(t *testing.T) {
	bus := &capturingBus{}
	svc := New(newFakeStore(), bus, logger.New("test"))

	created, err := svc.Create(context.Background(), transport.CreateCompanyRequest{
		Name:   "Beta",
		Source: "manual",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, next := range []domain.Status{
		domain.StatusEnriching, domain.StatusEnriched, domain.StatusContacted, domain.StatusConverted,
	} {
		got, err := svc.UpdateStatus(context.Background(), created.ID, transport.UpdateStatusRequest{Status: string(next)})
		if err != nil {
			t.Fatalf("UpdateStatus to %s: %v", next, err)
		}
		if got.Status != string(next) {
			t.Fatalf("status = %q, want %q", got.Status, next)
		}
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	svc := New(newFakeStore(), &capturingBus{}, logger.New("test"))

	created, err := svc.Create(context.Background(), transport.CreateCompanyRequest{
		Name:   "Gamma",
		Source: "manual",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), created.ID, transport.UpdateStatusRequest{Status: string(domain.StatusConverted)})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict (err: %v)", apperr.GetKind(err), err)
	}

	unchanged, err := svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if unchanged.Status != string(domain.StatusNew) {
		t.Fatalf("status mutated on rejected transition: %q", unchanged.Status)
	}
}

func TestCreateDuplicateDomainConflicts(t *testing.T) {
	svc := New(newFakeStore(), &capturingBus{}, logger.New("test"))

	if _, err := svc.Create(context.Background(), transport.CreateCompanyRequest{
		Name:   "Delta",
		Domain: strPtr("delta.dev"),
		Source: "manual",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := svc.Create(context.Background(), transport.CreateCompanyRequest{
		Name:   "Delta Two",
		Domain: strPtr("delta.dev"),
		Source: "manual",
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict (err: %v)", apperr.GetKind(err), err)
	}
}

func TestCreateRejectsUnknownSource(t *testing.T) {
	svc := New(newFakeStore(), &capturingBus{}, logger.New("test"))

	_, err := svc.Create(context.Background(), transport.CreateCompanyRequest{
		Name:   "Epsilon",
		Source: "word_of_mouth",
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want Validation (err: %v)", apperr.GetKind(err), err)
	}
}
