package service

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/companies/domain"
	"outreach_backend/internal/companies/repository"
	"outreach_backend/internal/companies/transport"
	"outreach_backend/internal/events"
	"outreach_backend/internal/statemachine"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence boundary the service needs. The concrete
// implementation is repository.Repository.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (domain.Company, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Company, error)
	GetByDomain(ctx context.Context, companyDomain string) (domain.Company, error)
	GetOrCreateByDomain(ctx context.Context, params repository.CreateParams) (domain.Company, bool, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Company, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) (domain.Company, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateParams) (domain.Company, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service provides business logic for the company pipeline.
type Service struct {
	repo Store
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new companies service.
func New(repo Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Create registers a manually entered company.
func (s *Service) Create(ctx context.Context, req transport.CreateCompanyRequest) (transport.CompanyResponse, error) {
	source := domain.Source(req.Source)
	if !domain.IsKnownSource(source) {
		return transport.CompanyResponse{}, apperr.Validation("unknown company source")
	}

	c, err := s.repo.Create(ctx, repository.CreateParams{
		Name:     req.Name,
		Domain:   req.Domain,
		Source:   source,
		Industry: req.Industry,
	})
	if err != nil {
		return transport.CompanyResponse{}, mapStoreErr(err)
	}

	s.publishDiscovered(ctx, c)
	return toResponse(c), nil
}

// GetOrCreateByDomain deduplicates ingestion by unique domain. The existing
// company wins on identity fields; created reports whether a row was inserted.
func (s *Service) GetOrCreateByDomain(ctx context.Context, req transport.CreateCompanyRequest) (transport.GetOrCreateResponse, error) {
	source := domain.Source(req.Source)
	if !domain.IsKnownSource(source) {
		return transport.GetOrCreateResponse{}, apperr.Validation("unknown company source")
	}

	c, created, err := s.repo.GetOrCreateByDomain(ctx, repository.CreateParams{
		Name:     req.Name,
		Domain:   req.Domain,
		Source:   source,
		Industry: req.Industry,
	})
	if err != nil {
		return transport.GetOrCreateResponse{}, mapStoreErr(err)
	}

	if created {
		s.publishDiscovered(ctx, c)
	}
	return transport.GetOrCreateResponse{Company: toResponse(c), Created: created}, nil
}

// GetByID returns one company.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.CompanyResponse, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CompanyResponse{}, mapStoreErr(err)
	}
	return toResponse(c), nil
}

// GetByDomain returns the company holding the unique domain.
func (s *Service) GetByDomain(ctx context.Context, companyDomain string) (transport.CompanyResponse, error) {
	c, err := s.repo.GetByDomain(ctx, companyDomain)
	if err != nil {
		return transport.CompanyResponse{}, mapStoreErr(err)
	}
	return toResponse(c), nil
}

// List returns companies filtered by status and source.
func (s *Service) List(ctx context.Context, req transport.ListCompaniesRequest) (transport.CompanyListResponse, error) {
	params := repository.ListParams{Skip: req.Skip, Limit: req.Limit}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		params.Status = &status
	}
	if req.Source != nil {
		source := domain.Source(*req.Source)
		params.Source = &source
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.CompanyListResponse{}, mapStoreErr(err)
	}

	out := make([]transport.CompanyResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toResponse(c))
	}
	return transport.CompanyListResponse{Items: out, Total: total}, nil
}

// UpdateStatus applies a guarded pipeline transition. The transition check
// and the write land atomically through the repository's compare-and-set.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateStatusRequest) (transport.CompanyResponse, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CompanyResponse{}, mapStoreErr(err)
	}

	from := c.Status
	if err := c.UpdateStatus(domain.Status(req.Status)); err != nil {
		return transport.CompanyResponse{}, mapStoreErr(err)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, c.Status)
	if err != nil {
		return transport.CompanyResponse{}, mapStoreErr(err)
	}

	s.log.Info("company status updated", "companyId", id, "from", from, "to", updated.Status)
	if s.bus != nil {
		s.bus.Publish(ctx, events.CompanyStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			CompanyID: id,
			OldStatus: string(from),
			NewStatus: string(updated.Status),
		})
	}
	return toResponse(updated), nil
}

// MarkContacted advances an enriched company to contacted after the first
// outreach email lands. Companies not yet enriched or already further along
// are left untouched; a lost write race means another send just moved it,
// which is the same outcome.
func (s *Service) MarkContacted(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}

	next := domain.Machine.Advance(c.Status, domain.StatusContacted)
	if next == c.Status {
		return nil
	}

	if _, err := s.repo.UpdateStatus(ctx, id, c.Status, next); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return mapStoreErr(err)
	}
	s.log.Info("company contacted", "companyId", id)
	return nil
}

// Update patches descriptive company fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateCompanyRequest) (transport.CompanyResponse, error) {
	c, err := s.repo.Update(ctx, id, repository.UpdateParams{
		Name:     req.Name,
		Industry: req.Industry,
	})
	if err != nil {
		return transport.CompanyResponse{}, mapStoreErr(err)
	}
	return toResponse(c), nil
}

// Delete removes a company by explicit operator action.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	s.log.Info("company deleted", "companyId", id)
	return nil
}

func (s *Service) publishDiscovered(ctx context.Context, c domain.Company) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.CompanyDiscovered{
		BaseEvent: events.NewBaseEvent(),
		CompanyID: c.ID,
		Name:      c.Name,
		Domain:    c.Domain,
		Source:    string(c.Source),
	})
}

func mapStoreErr(err error) error {
	var invalid *statemachine.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		return apperr.Wrap(apperr.KindConflict, invalid.Error(), err)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("company not found")
	case errors.Is(err, repository.ErrStaleStatus):
		return apperr.Conflict("company was updated concurrently, retry")
	case errors.Is(err, repository.ErrDuplicateDomain):
		return apperr.Conflict("company domain already exists")
	default:
		return err
	}
}

func toResponse(c domain.Company) transport.CompanyResponse {
	return transport.CompanyResponse{
		ID:        c.ID,
		Name:      c.Name,
		Domain:    c.Domain,
		Source:    string(c.Source),
		Status:    string(c.Status),
		Industry:  c.Industry,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}
