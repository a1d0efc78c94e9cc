package service

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leads/transport"
	"outreach_backend/internal/statemachine"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence boundary the service needs. The concrete
// implementation is repository.Repository.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (domain.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	GetByEmail(ctx context.Context, email string) (domain.Lead, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Lead, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) (domain.Lead, error)
	UpdateScore(ctx context.Context, lead domain.Lead, from domain.Status) (domain.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateParams) (domain.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service provides business logic for the lead pipeline.
type Service struct {
	repo Store
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new leads service.
func New(repo Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Create extracts a lead for a company.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	l, err := s.repo.Create(ctx, repository.CreateParams{
		CompanyID: req.CompanyID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		JobTitle:  req.JobTitle,
	})
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadCreated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    l.ID,
			CompanyID: l.CompanyID,
			Email:     l.Email,
		})
	}
	return toResponse(l), nil
}

// GetByID returns one lead.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}
	return toResponse(l), nil
}

// GetByEmail returns the lead holding the unique email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (transport.LeadResponse, error) {
	l, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}
	return toResponse(l), nil
}

// List returns leads filtered by company, status, and classification.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	params := repository.ListParams{CompanyID: req.CompanyID, Skip: req.Skip, Limit: req.Limit}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		params.Status = &status
	}
	if req.Classification != nil {
		class := domain.Classification(*req.Classification)
		params.Classification = &class
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, mapStoreErr(err)
	}

	out := make([]transport.LeadResponse, 0, len(items))
	for _, l := range items {
		out = append(out, toResponse(l))
	}
	return transport.LeadListResponse{Items: out, Total: total}, nil
}

// Score records an ICP score with its breakdown, reclassifies the lead, and
// advances it along the pipeline. Scoring and the status change persist in
// one guarded write.
func (s *Service) Score(ctx context.Context, id uuid.UUID, req transport.ScoreLeadRequest) (transport.LeadResponse, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}

	from := l.Status
	if err := l.UpdateScore(req.Score, req.Breakdown); err != nil {
		return transport.LeadResponse{}, err
	}

	updated, err := s.repo.UpdateScore(ctx, l, from)
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}

	s.log.Info("lead scored", "leadId", id, "score", req.Score,
		"classification", updated.Classification, "status", updated.Status)
	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadScored{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         id,
			Score:          req.Score,
			Classification: string(updated.Classification),
			Status:         string(updated.Status),
		})
		if from != domain.StatusQualified && updated.Status == domain.StatusQualified {
			s.bus.Publish(ctx, events.LeadQualified{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    id,
				Score:     req.Score,
			})
		}
	}
	return toResponse(updated), nil
}

// MarkSequenced advances a qualified lead into the outreach sequence. Leads
// already sequenced or further along are left untouched; a lost write race
// means another caller just sequenced it, which is the same outcome.
func (s *Service) MarkSequenced(ctx context.Context, id uuid.UUID) error {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}

	next := domain.Machine.Advance(l.Status, domain.StatusSequenced)
	if next == l.Status {
		return nil
	}

	if _, err := s.repo.UpdateStatus(ctx, id, l.Status, next); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return mapStoreErr(err)
	}
	s.log.Info("lead sequenced", "leadId", id)
	return nil
}

// MarkReplied advances a sequenced lead to replied when an inbound reply is
// recorded against one of its emails. Leads not yet in the sequence or
// already past replied are left untouched, mirroring MarkSequenced.
func (s *Service) MarkReplied(ctx context.Context, id uuid.UUID) error {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}

	next := domain.Machine.Advance(l.Status, domain.StatusReplied)
	if next == l.Status {
		return nil
	}

	if _, err := s.repo.UpdateStatus(ctx, id, l.Status, next); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return mapStoreErr(err)
	}
	s.log.Info("lead replied", "leadId", id)
	return nil
}

// UpdateStatus applies a guarded pipeline transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateStatusRequest) (transport.LeadResponse, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}

	from := l.Status
	if err := l.UpdateStatus(domain.Status(req.Status)); err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, l.Status)
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}

	s.log.Info("lead status updated", "leadId", id, "from", from, "to", updated.Status)
	return toResponse(updated), nil
}

// Update patches lead contact fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	l, err := s.repo.Update(ctx, id, repository.UpdateParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		JobTitle:  req.JobTitle,
	})
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}
	return toResponse(l), nil
}

// Delete removes a lead by explicit operator action.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	s.log.Info("lead deleted", "leadId", id)
	return nil
}

func mapStoreErr(err error) error {
	var invalid *statemachine.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		return apperr.Wrap(apperr.KindConflict, invalid.Error(), err)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrStaleStatus):
		return apperr.Conflict("lead was updated concurrently, retry")
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperr.Conflict("lead email already exists")
	default:
		return err
	}
}

func toResponse(l domain.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:             l.ID,
		CompanyID:      l.CompanyID,
		FirstName:      l.FirstName,
		LastName:       l.LastName,
		FullName:       l.FullName(),
		Email:          l.Email,
		JobTitle:       l.JobTitle,
		ICPScore:       l.ICPScore,
		ScoreBreakdown: l.ScoreBreakdown,
		Classification: string(l.Classification),
		Status:         string(l.Status),
		CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      l.UpdatedAt.Format(time.RFC3339),
	}
}
