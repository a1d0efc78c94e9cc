package repository

import (
	"context"
	"errors"

	"outreach_backend/internal/companies/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no company matches the lookup.
	ErrNotFound = errors.New("company not found")
	// ErrStaleStatus is returned when a guarded status update lost the
	// compare-and-set race against a concurrent writer.
	ErrStaleStatus = errors.New("company status changed concurrently")
	// ErrDuplicateDomain is returned when an insert violates the unique
	// domain constraint.
	ErrDuplicateDomain = errors.New("company domain already exists")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// Repository provides persistence for companies backed by Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new company repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const companyColumns = `id, name, domain, source, status, industry, created_at, updated_at`

func scanCompany(row pgx.Row) (domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.Source, &c.Status, &c.Industry, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateParams holds the fields for inserting a company.
type CreateParams struct {
	Name     string
	Domain   *string
	Source   domain.Source
	Industry *string
}

// Create inserts a company with the initial status. Duplicate domains are
// surfaced as ErrDuplicateDomain.
func (r *Repository) Create(ctx context.Context, params CreateParams) (domain.Company, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO companies (name, domain, source, status, industry)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+companyColumns,
		params.Name, params.Domain, params.Source, domain.Machine.Initial(), params.Industry,
	)
	c, err := scanCompany(row)
	if isUniqueViolation(err) {
		return domain.Company{}, ErrDuplicateDomain
	}
	if err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

// GetByID returns the company with the given id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Company{}, ErrNotFound
	}
	if err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

// GetByDomain returns the company with the given unique domain.
func (r *Repository) GetByDomain(ctx context.Context, companyDomain string) (domain.Company, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE domain = $1`, companyDomain)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Company{}, ErrNotFound
	}
	if err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

// GetOrCreateByDomain looks up a company by domain and creates it when
// missing. Identity fields are first-write-wins: an existing company is
// returned unchanged, incoming name/source/industry are ignored. The unique
// violation race between lookup and insert is converted back into a lookup.
func (r *Repository) GetOrCreateByDomain(ctx context.Context, params CreateParams) (domain.Company, bool, error) {
	if params.Domain == nil || *params.Domain == "" {
		c, err := r.Create(ctx, params)
		return c, err == nil, err
	}

	existing, err := r.GetByDomain(ctx, *params.Domain)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Company{}, false, err
	}

	created, err := r.Create(ctx, params)
	if errors.Is(err, ErrDuplicateDomain) {
		// Lost the insert race to a concurrent writer; the row exists now.
		existing, lookupErr := r.GetByDomain(ctx, *params.Domain)
		if lookupErr != nil {
			return domain.Company{}, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return domain.Company{}, false, err
	}
	return created, true, nil
}

// ListParams filters and paginates company listings.
type ListParams struct {
	Status *domain.Status
	Source *domain.Source
	Skip   int
	Limit  int
}

// List returns companies matching the filters plus the total match count.
func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Company, int, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+companyColumns+`, COUNT(*) OVER () AS total
		FROM companies
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR source = $2)
		ORDER BY created_at DESC
		OFFSET $3 LIMIT $4
	`, params.Status, params.Source, params.Skip, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Company, 0)
	total := 0
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Domain, &c.Source, &c.Status, &c.Industry, &c.CreatedAt, &c.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return items, total, nil
}

// UpdateStatus performs a guarded status transition as a compare-and-set:
// the write only lands when the row still carries the expected current
// status, so concurrent writers cannot double-apply the same transition.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) (domain.Company, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE companies
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+companyColumns,
		id, from, to,
	)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := r.GetByID(ctx, id); errors.Is(lookupErr, ErrNotFound) {
			return domain.Company{}, ErrNotFound
		}
		return domain.Company{}, ErrStaleStatus
	}
	if err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

// UpdateParams holds the mutable descriptive fields of a company.
type UpdateParams struct {
	Name     *string
	Industry *string
}

// Update patches descriptive fields, leaving status untouched.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (domain.Company, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE companies
		SET name = COALESCE($2, name),
		    industry = COALESCE($3, industry),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+companyColumns,
		id, params.Name, params.Industry,
	)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Company{}, ErrNotFound
	}
	if err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

// Delete removes a company. Companies are never deleted except by explicit
// operator action; leads keep their company reference by policy.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
