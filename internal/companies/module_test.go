package companies

import (
	"context"
	"errors"
	"testing"

	"outreach_backend/internal/companies/domain"
	"outreach_backend/internal/companies/repository"
	"outreach_backend/internal/companies/service"
	"outreach_backend/internal/events"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// statusStore is the minimal store the event path touches: lookup plus the
// compare-and-set status write.
type statusStore struct {
	companies map[uuid.UUID]domain.Company
}

func (s *statusStore) GetByID(_ context.Context, id uuid.UUID) (domain.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return domain.Company{}, repository.ErrNotFound
	}
	return c, nil
}

func (s *statusStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.Status) (domain.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return domain.Company{}, repository.ErrNotFound
	}
	if c.Status != from {
		return domain.Company{}, repository.ErrStaleStatus
	}
	c.Status = to
	s.companies[id] = c
	return c, nil
}

var errUnused = errors.New("not exercised by the event path")

func (s *statusStore) Create(context.Context, repository.CreateParams) (domain.Company, error) {
	return domain.Company{}, errUnused
}
func (s *statusStore) GetByDomain(context.Context, string) (domain.Company, error) {
	return domain.Company{}, errUnused
}
func (s *statusStore) GetOrCreateByDomain(context.Context, repository.CreateParams) (domain.Company, bool, error) {
	return domain.Company{}, false, errUnused
}
func (s *statusStore) List(context.Context, repository.ListParams) ([]domain.Company, int, error) {
	return nil, 0, errUnused
}
func (s *statusStore) Update(context.Context, uuid.UUID, repository.UpdateParams) (domain.Company, error) {
	return domain.Company{}, errUnused
}
func (s *statusStore) Delete(context.Context, uuid.UUID) error { return errUnused }

func newTestModule(store service.Store, bus events.Bus) *Module {
	return &Module{service: service.New(store, bus, logger.New("test"))}
}

func TestEmailSentAdvancesEnrichedCompanyToContacted(t *testing.T) {
	companyID := uuid.New()
	store := &statusStore{companies: map[uuid.UUID]domain.Company{
		companyID: {ID: companyID, Name: "Acme", Status: domain.StatusEnriched},
	}}
	bus := events.NewInMemoryBus(logger.New("test"))

	m := newTestModule(store, bus)
	m.RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.EmailSent{
		BaseEvent: events.NewBaseEvent(),
		EmailID:   uuid.New(),
		LeadID:    uuid.New(),
		CompanyID: companyID,
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if got := store.companies[companyID].Status; got != domain.StatusContacted {
		t.Fatalf("status = %q, want %q", got, domain.StatusContacted)
	}
}

func TestEmailSentLeavesUnenrichedCompanyAlone(t *testing.T) {
	companyID := uuid.New()
	store := &statusStore{companies: map[uuid.UUID]domain.Company{
		companyID: {ID: companyID, Name: "Acme", Status: domain.StatusNew},
	}}
	bus := events.NewInMemoryBus(logger.New("test"))

	m := newTestModule(store, bus)
	m.RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.EmailSent{
		BaseEvent: events.NewBaseEvent(),
		EmailID:   uuid.New(),
		LeadID:    uuid.New(),
		CompanyID: companyID,
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if got := store.companies[companyID].Status; got != domain.StatusNew {
		t.Fatalf("status = %q, want unchanged %q", got, domain.StatusNew)
	}
}
