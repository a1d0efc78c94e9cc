package repository

import (
	"context"
	"errors"

	"outreach_backend/internal/scrapejobs/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no job matches the lookup.
	ErrNotFound = errors.New("scrape job not found")
	// ErrStaleStatus is returned when a guarded status update lost the
	// compare-and-set race against a concurrent writer.
	ErrStaleStatus = errors.New("scrape job status changed concurrently")
)

// Repository provides persistence for scrape jobs backed by Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new scrape job repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobColumns = `id, source, keywords, filters, status, results_count, new_companies_count,
	duplicate_count, error_message, task_id, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Source, &j.Keywords, &j.Filters, &j.Status, &j.ResultsCount, &j.NewCompaniesCount,
		&j.DuplicateCount, &j.ErrorMessage, &j.TaskID, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	return j, err
}

// CreateParams holds the fields for inserting a scrape job.
type CreateParams struct {
	Source   string
	Keywords []string
	Filters  map[string]any
}

// Create inserts a pending scrape job.
func (r *Repository) Create(ctx context.Context, params CreateParams) (domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO scrape_jobs (source, keywords, filters, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+jobColumns,
		params.Source, params.Keywords, params.Filters, domain.Machine.Initial(),
	)
	return scanJob(row)
}

// GetByID returns the job with the given id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM scrape_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, ErrNotFound
	}
	if err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// ListParams filters and paginates job listings.
type ListParams struct {
	Status *domain.Status
	Skip   int
	Limit  int
}

// List returns jobs matching the filters plus the total match count.
func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Job, int, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`, COUNT(*) OVER () AS total
		FROM scrape_jobs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, params.Status, params.Skip, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Job, 0)
	total := 0
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(
			&j.ID, &j.Source, &j.Keywords, &j.Filters, &j.Status, &j.ResultsCount, &j.NewCompaniesCount,
			&j.DuplicateCount, &j.ErrorMessage, &j.TaskID, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, j)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return items, total, nil
}

// SetTaskID stores the background task handle once the job is enqueued.
func (r *Repository) SetTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE scrape_jobs SET task_id = $2 WHERE id = $1`, id, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Start moves a pending job into execution, stamping started_at.
func (r *Repository) Start(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE scrape_jobs
		SET status = $3, started_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+jobColumns,
		id, domain.StatusPending, domain.StatusRunning,
	)
	return r.guarded(ctx, id, row)
}

// Complete records a successful run with its verbatim counters.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, resultsCount, newCount, duplicateCount int) (domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE scrape_jobs
		SET status = $3, completed_at = now(),
		    results_count = $4, new_companies_count = $5, duplicate_count = $6
		WHERE id = $1 AND status = $2
		RETURNING `+jobColumns,
		id, domain.StatusRunning, domain.StatusCompleted, resultsCount, newCount, duplicateCount,
	)
	return r.guarded(ctx, id, row)
}

// Fail records a failed run with its error message.
func (r *Repository) Fail(ctx context.Context, id uuid.UUID, msg string) (domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE scrape_jobs
		SET status = $3, completed_at = now(), error_message = $4
		WHERE id = $1 AND status = $2
		RETURNING `+jobColumns,
		id, domain.StatusRunning, domain.StatusFailed, msg,
	)
	return r.guarded(ctx, id, row)
}

// Cancel aborts a job from any status that still permits cancellation.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	sources := domain.Machine.SourcesOf(domain.StatusCancelled)
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE scrape_jobs
		SET status = $3
		WHERE id = $1 AND status = ANY($2)
		RETURNING `+jobColumns,
		id, from, domain.StatusCancelled,
	)
	return r.guarded(ctx, id, row)
}

func (r *Repository) guarded(ctx context.Context, id uuid.UUID, row pgx.Row) (domain.Job, error) {
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := r.GetByID(ctx, id); errors.Is(lookupErr, ErrNotFound) {
			return domain.Job{}, ErrNotFound
		}
		return domain.Job{}, ErrStaleStatus
	}
	if err != nil {
		return domain.Job{}, err
	}
	return j, nil
}
