package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	companydomain "outreach_backend/internal/companies/domain"
	"outreach_backend/internal/events"
	"outreach_backend/internal/scrapejobs/domain"
	"outreach_backend/internal/scrapejobs/ports"
	"outreach_backend/internal/scrapejobs/repository"
	"outreach_backend/internal/scrapejobs/transport"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	jobs map[uuid.UUID]*domain.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateParams) (domain.Job, error) {
	j := &domain.Job{
		ID:       uuid.New(),
		Source:   companydomain.Source(params.Source),
		Keywords: params.Keywords,
		Filters:  params.Filters,
		Status:   domain.StatusPending,
	}
	f.jobs[j.ID] = j
	return *j, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (domain.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, repository.ErrNotFound
	}
	return *j, nil
}

func (f *fakeStore) List(_ context.Context, _ repository.ListParams) ([]domain.Job, int, error) {
	out := make([]domain.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, *j)
	}
	return out, len(out), nil
}

func (f *fakeStore) SetTaskID(_ context.Context, id uuid.UUID, taskID string) error {
	j, ok := f.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.TaskID = &taskID
	return nil
}

func (f *fakeStore) mutate(id uuid.UUID, apply func(*domain.Job) error) (domain.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, repository.ErrNotFound
	}
	if err := apply(j); err != nil {
		return domain.Job{}, repository.ErrStaleStatus
	}
	return *j, nil
}

func (f *fakeStore) Start(_ context.Context, id uuid.UUID) (domain.Job, error) {
	return f.mutate(id, func(j *domain.Job) error { return j.Start() })
}

func (f *fakeStore) Complete(_ context.Context, id uuid.UUID, results, newCount, dup int) (domain.Job, error) {
	return f.mutate(id, func(j *domain.Job) error { return j.Complete(results, newCount, dup) })
}

func (f *fakeStore) Fail(_ context.Context, id uuid.UUID, msg string) (domain.Job, error) {
	return f.mutate(id, func(j *domain.Job) error { return j.Fail(msg) })
}

func (f *fakeStore) Cancel(_ context.Context, id uuid.UUID) (domain.Job, error) {
	return f.mutate(id, func(j *domain.Job) error { return j.Cancel() })
}

type fakeEnqueuer struct {
	err error
}

func (f *fakeEnqueuer) EnqueueScrapeJob(_ context.Context, _ uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "task-" + uuid.NewString(), nil
}

type fakeScraper struct {
	results []ports.DiscoveredCompany
	err     error
}

func (f *fakeScraper) Scrape(_ context.Context, _ companydomain.Source, _ []string, _ map[string]any) ([]ports.DiscoveredCompany, error) {
	return f.results, f.err
}

type fakeIngester struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeIngester) Ingest(_ context.Context, company ports.DiscoveredCompany, _ companydomain.Source) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := company.Name
	if company.Domain != nil {
		key = *company.Domain
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

func strPtr(s string) *string { return &s }

func newTestService(store Store, enqueuer TaskEnqueuer, scraper ports.Scraper, ingester ports.CompanyIngester) *Service {
	return New(store, enqueuer, scraper, ingester, nopBus{}, logger.New("test"))
}

func TestRunCompletesWithDeduplicatedCounts(t *testing.T) {
	store := newFakeStore()
	scraper := &fakeScraper{results: []ports.DiscoveredCompany{
		{Name: "Acme", Domain: strPtr("acme.com")},
		{Name: "Beta", Domain: strPtr("beta.io")},
		{Name: "Acme Again", Domain: strPtr("acme.com")},
	}}
	svc := newTestService(store, &fakeEnqueuer{}, scraper, &fakeIngester{})

	created, err := svc.Create(context.Background(), transport.CreateJobRequest{Source: "google_maps"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.TaskID == nil {
		t.Fatal("task id not stored after enqueue")
	}

	if err := svc.Run(context.Background(), created.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, err := svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != string(domain.StatusCompleted) {
		t.Fatalf("status = %q, want %q", job.Status, domain.StatusCompleted)
	}
	if job.ResultsCount != 3 || job.NewCompaniesCount != 2 || job.DuplicateCount != 1 {
		t.Fatalf("counters = %d/%d/%d, want 3/2/1", job.ResultsCount, job.NewCompaniesCount, job.DuplicateCount)
	}
	if job.DurationSeconds == nil || *job.DurationSeconds < 0 {
		t.Fatalf("duration = %v, want non-negative", job.DurationSeconds)
	}
}

func TestRunAfterCancelIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeEnqueuer{}, &fakeScraper{}, &fakeIngester{})

	created, err := svc.Create(context.Background(), transport.CreateJobRequest{Source: "linkedin"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), created.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if err := svc.Run(context.Background(), created.ID); err != nil {
		t.Fatalf("Run on cancelled job should be a no-op, got: %v", err)
	}

	job, err := svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != string(domain.StatusCancelled) {
		t.Fatalf("status = %q, want %q", job.Status, domain.StatusCancelled)
	}
}

func TestRunScraperFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	scraper := &fakeScraper{err: errors.New("source unreachable")}
	svc := newTestService(store, &fakeEnqueuer{}, scraper, &fakeIngester{})

	created, err := svc.Create(context.Background(), transport.CreateJobRequest{Source: "yellow_pages"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Run(context.Background(), created.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, err := svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != string(domain.StatusFailed) {
		t.Fatalf("status = %q, want %q", job.Status, domain.StatusFailed)
	}
	if job.ErrorMessage == nil || *job.ErrorMessage != "source unreachable" {
		t.Fatalf("error_message = %v", job.ErrorMessage)
	}
}

func TestCreateRejectsUnknownSource(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeEnqueuer{}, &fakeScraper{}, &fakeIngester{})

	_, err := svc.Create(context.Background(), transport.CreateJobRequest{Source: "carrier_pigeon"})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want Validation (err: %v)", apperr.GetKind(err), err)
	}
}

func TestCancelCompletedJobConflicts(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeEnqueuer{}, &fakeScraper{}, &fakeIngester{})

	created, err := svc.Create(context.Background(), transport.CreateJobRequest{Source: "csv_import"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Run(context.Background(), created.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	_, err = svc.Cancel(context.Background(), created.ID)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict (err: %v)", apperr.GetKind(err), err)
	}
}
