package repository

import (
	"context"
	"errors"

	"outreach_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no lead matches the lookup.
	ErrNotFound = errors.New("lead not found")
	// ErrStaleStatus is returned when a guarded status update lost the
	// compare-and-set race against a concurrent writer.
	ErrStaleStatus = errors.New("lead status changed concurrently")
	// ErrDuplicateEmail is returned when an insert violates the unique
	// email constraint.
	ErrDuplicateEmail = errors.New("lead email already exists")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// Repository provides persistence for leads backed by Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new lead repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, company_id, first_name, last_name, email, job_title,
	icp_score, score_breakdown, classification, status, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.CompanyID, &l.FirstName, &l.LastName, &l.Email, &l.JobTitle,
		&l.ICPScore, &l.ScoreBreakdown, &l.Classification, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// CreateParams holds the fields for inserting a lead.
type CreateParams struct {
	CompanyID uuid.UUID
	FirstName string
	LastName  string
	Email     *string
	JobTitle  *string
}

// Create inserts a lead with the initial status and no score. Duplicate
// emails are surfaced as ErrDuplicateEmail.
func (r *Repository) Create(ctx context.Context, params CreateParams) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (company_id, first_name, last_name, email, job_title, classification, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+leadColumns,
		params.CompanyID, params.FirstName, params.LastName, params.Email, params.JobTitle,
		domain.ClassificationUnscored, domain.Machine.Initial(),
	)
	l, err := scanLead(row)
	if isUniqueViolation(err) {
		return domain.Lead{}, ErrDuplicateEmail
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

// GetByID returns the lead with the given id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

// GetByEmail returns the lead holding the unique email address.
func (r *Repository) GetByEmail(ctx context.Context, email string) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = $1`, email)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

// ListParams filters and paginates lead listings.
type ListParams struct {
	CompanyID      *uuid.UUID
	Status         *domain.Status
	Classification *domain.Classification
	Skip           int
	Limit          int
}

// List returns leads matching the filters plus the total match count.
func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`, COUNT(*) OVER () AS total
		FROM leads
		WHERE ($1::uuid IS NULL OR company_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR classification = $3)
		ORDER BY created_at DESC
		OFFSET $4 LIMIT $5
	`, params.CompanyID, params.Status, params.Classification, params.Skip, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	total := 0
	for rows.Next() {
		var l domain.Lead
		if err := rows.Scan(
			&l.ID, &l.CompanyID, &l.FirstName, &l.LastName, &l.Email, &l.JobTitle,
			&l.ICPScore, &l.ScoreBreakdown, &l.Classification, &l.Status, &l.CreatedAt, &l.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return items, total, nil
}

// UpdateStatus performs a guarded status transition as a compare-and-set.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+leadColumns,
		id, from, to,
	)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := r.GetByID(ctx, id); errors.Is(lookupErr, ErrNotFound) {
			return domain.Lead{}, ErrNotFound
		}
		return domain.Lead{}, ErrStaleStatus
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

// UpdateScore writes the score, its breakdown, the recomputed classification,
// and the advanced status in one compare-and-set against the status the
// mutation was computed from. A lost race surfaces as ErrStaleStatus so the
// caller can reload and retry.
func (r *Repository) UpdateScore(ctx context.Context, lead domain.Lead, from domain.Status) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET icp_score = $3,
		    score_breakdown = $4,
		    classification = $5,
		    status = $6,
		    updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+leadColumns,
		lead.ID, from, lead.ICPScore, lead.ScoreBreakdown, lead.Classification, lead.Status,
	)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := r.GetByID(ctx, lead.ID); errors.Is(lookupErr, ErrNotFound) {
			return domain.Lead{}, ErrNotFound
		}
		return domain.Lead{}, ErrStaleStatus
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

// UpdateParams holds the mutable contact fields of a lead.
type UpdateParams struct {
	FirstName *string
	LastName  *string
	Email     *string
	JobTitle  *string
}

// Update patches contact fields, leaving score and status untouched.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    email = COALESCE($4, email),
		    job_title = COALESCE($5, job_title),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, params.FirstName, params.LastName, params.Email, params.JobTitle,
	)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if isUniqueViolation(err) {
		return domain.Lead{}, ErrDuplicateEmail
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

// Delete removes a lead.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
