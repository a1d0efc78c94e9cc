package service

import (
	"context"
	"errors"
	"time"

	companydomain "outreach_backend/internal/companies/domain"
	"outreach_backend/internal/events"
	"outreach_backend/internal/scrapejobs/domain"
	"outreach_backend/internal/scrapejobs/ports"
	"outreach_backend/internal/scrapejobs/repository"
	"outreach_backend/internal/scrapejobs/transport"
	"outreach_backend/internal/statemachine"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ingestConcurrency caps parallel company ingestion per scrape run.
const ingestConcurrency = 4

// Store is the persistence boundary the service needs. The concrete
// implementation is repository.Repository.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (domain.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Job, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Job, int, error)
	SetTaskID(ctx context.Context, id uuid.UUID, taskID string) error
	Start(ctx context.Context, id uuid.UUID) (domain.Job, error)
	Complete(ctx context.Context, id uuid.UUID, resultsCount, newCount, duplicateCount int) (domain.Job, error)
	Fail(ctx context.Context, id uuid.UUID, msg string) (domain.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Job, error)
}

// TaskEnqueuer hands a job to the background worker and returns the opaque
// task handle.
type TaskEnqueuer interface {
	EnqueueScrapeJob(ctx context.Context, jobID uuid.UUID) (string, error)
}

// Service provides business logic for scrape jobs: launching, cancelling,
// and executing the discovery run.
type Service struct {
	repo     Store
	enqueuer TaskEnqueuer
	scraper  ports.Scraper
	ingester ports.CompanyIngester
	bus      events.Bus
	log      *logger.Logger
}

// New creates a new scrape jobs service.
func New(repo Store, enqueuer TaskEnqueuer, scraper ports.Scraper, ingester ports.CompanyIngester, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		enqueuer: enqueuer,
		scraper:  scraper,
		ingester: ingester,
		bus:      bus,
		log:      log,
	}
}

// Create inserts a pending job and enqueues it on the background worker.
func (s *Service) Create(ctx context.Context, req transport.CreateJobRequest) (transport.JobResponse, error) {
	source := companydomain.Source(req.Source)
	if !companydomain.IsKnownSource(source) {
		return transport.JobResponse{}, apperr.Validation("unknown scrape source")
	}

	j, err := s.repo.Create(ctx, repository.CreateParams{
		Source:   req.Source,
		Keywords: req.Keywords,
		Filters:  req.Filters,
	})
	if err != nil {
		return transport.JobResponse{}, mapStoreErr(err)
	}

	taskID, err := s.enqueuer.EnqueueScrapeJob(ctx, j.ID)
	if err != nil {
		s.log.Error("scrape job not enqueued", "jobId", j.ID, "error", err)
		if _, failErr := s.repo.Cancel(ctx, j.ID); failErr != nil {
			s.log.Error("orphaned scrape job not cancelled", "jobId", j.ID, "error", failErr)
		}
		return transport.JobResponse{}, apperr.Wrap(apperr.KindInternal, "scrape job could not be enqueued", err)
	}

	if err := s.repo.SetTaskID(ctx, j.ID, taskID); err != nil {
		return transport.JobResponse{}, mapStoreErr(err)
	}
	j.TaskID = &taskID

	s.log.Info("scrape job enqueued", "jobId", j.ID, "taskId", taskID, "source", j.Source)
	return toResponse(j), nil
}

// GetByID returns one job.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.JobResponse, error) {
	j, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.JobResponse{}, mapStoreErr(err)
	}
	return toResponse(j), nil
}

// List returns jobs filtered by status.
func (s *Service) List(ctx context.Context, req transport.ListJobsRequest) (transport.JobListResponse, error) {
	params := repository.ListParams{Skip: req.Skip, Limit: req.Limit}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		params.Status = &status
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.JobListResponse{}, mapStoreErr(err)
	}

	out := make([]transport.JobResponse, 0, len(items))
	for _, j := range items {
		out = append(out, toResponse(j))
	}
	return transport.JobListResponse{Items: out, Total: total}, nil
}

// Cancel aborts a pending or running job.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (transport.JobResponse, error) {
	j, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return transport.JobResponse{}, mapStoreErr(err)
	}
	s.log.Info("scrape job cancelled", "jobId", id)
	return toResponse(j), nil
}

// Run executes one job end to end: start, scrape, deduplicate every result
// into the company pipeline, and record the outcome. Called by the
// background worker.
func (s *Service) Run(ctx context.Context, id uuid.UUID) error {
	j, err := s.repo.Start(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Cancelled before pickup or already claimed by another worker.
			s.log.Info("scrape job not started", "jobId", id)
			return nil
		}
		return mapStoreErr(err)
	}

	results, err := s.scraper.Scrape(ctx, j.Source, j.Keywords, j.Filters)
	if err != nil {
		return s.fail(ctx, id, err.Error())
	}

	created := make([]bool, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for i, result := range results {
		g.Go(func() error {
			isNew, err := s.ingester.Ingest(gctx, result, j.Source)
			if err != nil {
				return err
			}
			created[i] = isNew
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.fail(ctx, id, "ingest failed: "+err.Error())
	}

	newCount, duplicateCount := 0, 0
	for _, isNew := range created {
		if isNew {
			newCount++
		} else {
			duplicateCount++
		}
	}

	completed, err := s.repo.Complete(ctx, id, len(results), newCount, duplicateCount)
	if err != nil {
		return mapStoreErr(err)
	}

	s.log.Info("scrape job completed", "jobId", id,
		"results", completed.ResultsCount, "new", completed.NewCompaniesCount, "duplicates", completed.DuplicateCount)
	if s.bus != nil {
		s.bus.Publish(ctx, events.ScrapeJobCompleted{
			BaseEvent:         events.NewBaseEvent(),
			JobID:             id,
			ResultsCount:      completed.ResultsCount,
			NewCompaniesCount: completed.NewCompaniesCount,
			DuplicateCount:    completed.DuplicateCount,
		})
	}
	return nil
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, reason string) error {
	if _, err := s.repo.Fail(ctx, id, reason); err != nil {
		return mapStoreErr(err)
	}
	s.log.Error("scrape job failed", "jobId", id, "reason", reason)
	if s.bus != nil {
		s.bus.Publish(ctx, events.ScrapeJobFailed{
			BaseEvent: events.NewBaseEvent(),
			JobID:     id,
			Reason:    reason,
		})
	}
	return nil
}

func mapStoreErr(err error) error {
	var invalid *statemachine.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		return apperr.Wrap(apperr.KindConflict, invalid.Error(), err)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("scrape job not found")
	case errors.Is(err, repository.ErrStaleStatus):
		return apperr.Conflict("scrape job was updated concurrently, retry")
	default:
		return err
	}
}

func toResponse(j domain.Job) transport.JobResponse {
	return transport.JobResponse{
		ID:                j.ID,
		Source:            string(j.Source),
		Keywords:          j.Keywords,
		Filters:           j.Filters,
		Status:            string(j.Status),
		ResultsCount:      j.ResultsCount,
		NewCompaniesCount: j.NewCompaniesCount,
		DuplicateCount:    j.DuplicateCount,
		ErrorMessage:      j.ErrorMessage,
		TaskID:            j.TaskID,
		DurationSeconds:   j.DurationSeconds(),
		CreatedAt:         j.CreatedAt.Format(time.RFC3339),
		StartedAt:         formatTime(j.StartedAt),
		CompletedAt:       formatTime(j.CompletedAt),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
