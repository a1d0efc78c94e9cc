package repository

import (
	"context"
	"errors"

	"outreach_backend/internal/emails/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no email matches the lookup.
	ErrNotFound = errors.New("email not found")
	// ErrStaleStatus is returned when a guarded status update lost the
	// compare-and-set race against a concurrent writer.
	ErrStaleStatus = errors.New("email status changed concurrently")
	// ErrDuplicateTrackingID is returned when an insert violates the unique
	// tracking token constraint.
	ErrDuplicateTrackingID = errors.New("tracking id already exists")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// Repository provides persistence for outreach emails backed by Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new email repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const emailColumns = `id, lead_id, subject, body_text, status, sequence_step, tracking_id,
	open_count, click_count, sent_at, opened_at, clicked_at, replied_at, created_at, updated_at`

func scanEmail(row pgx.Row) (domain.Email, error) {
	var e domain.Email
	err := row.Scan(
		&e.ID, &e.LeadID, &e.Subject, &e.BodyText, &e.Status, &e.SequenceStep, &e.TrackingID,
		&e.OpenCount, &e.ClickCount, &e.SentAt, &e.OpenedAt, &e.ClickedAt, &e.RepliedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// CreateParams holds the fields for inserting a draft email.
type CreateParams struct {
	LeadID       uuid.UUID
	Subject      string
	BodyText     string
	SequenceStep domain.SequenceStep
	TrackingID   uuid.UUID
}

// Create inserts a draft email carrying a freshly minted tracking token.
func (r *Repository) Create(ctx context.Context, params CreateParams) (domain.Email, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO emails (lead_id, subject, body_text, status, sequence_step, tracking_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+emailColumns,
		params.LeadID, params.Subject, params.BodyText,
		domain.Machine.Initial(), params.SequenceStep, params.TrackingID,
	)
	e, err := scanEmail(row)
	if isUniqueViolation(err) {
		return domain.Email{}, ErrDuplicateTrackingID
	}
	if err != nil {
		return domain.Email{}, err
	}
	return e, nil
}

// GetByID returns the email with the given id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = $1`, id)
	e, err := scanEmail(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Email{}, ErrNotFound
	}
	if err != nil {
		return domain.Email{}, err
	}
	return e, nil
}

// GetByTrackingID resolves an inbound tracking token to its email.
func (r *Repository) GetByTrackingID(ctx context.Context, trackingID uuid.UUID) (domain.Email, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+emailColumns+` FROM emails WHERE tracking_id = $1`, trackingID)
	e, err := scanEmail(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Email{}, ErrNotFound
	}
	if err != nil {
		return domain.Email{}, err
	}
	return e, nil
}

// ListParams filters and paginates email listings.
type ListParams struct {
	LeadID *uuid.UUID
	Status *domain.Status
	Skip   int
	Limit  int
}

// List returns emails matching the filters plus the total match count.
func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Email, int, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+emailColumns+`, COUNT(*) OVER () AS total
		FROM emails
		WHERE ($1::uuid IS NULL OR lead_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		OFFSET $3 LIMIT $4
	`, params.LeadID, params.Status, params.Skip, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Email, 0)
	total := 0
	for rows.Next() {
		var e domain.Email
		if err := rows.Scan(
			&e.ID, &e.LeadID, &e.Subject, &e.BodyText, &e.Status, &e.SequenceStep, &e.TrackingID,
			&e.OpenCount, &e.ClickCount, &e.SentAt, &e.OpenedAt, &e.ClickedAt, &e.RepliedAt,
			&e.CreatedAt, &e.UpdatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return items, total, nil
}

// Queue moves a draft into the send queue as a compare-and-set.
func (r *Repository) Queue(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	return r.casStatus(ctx, id, domain.StatusDraft, domain.StatusPending, "")
}

// MarkSent records delivery, stamping sent_at in the same write.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	return r.casStatus(ctx, id, domain.StatusPending, domain.StatusSent, "sent_at = now(),")
}

// MarkFailed records a delivery failure.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	return r.casStatus(ctx, id, domain.StatusPending, domain.StatusFailed, "")
}

func (r *Repository) casStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, extraSet string) (domain.Email, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE emails
		SET `+extraSet+` status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+emailColumns,
		id, from, to,
	)
	e, err := scanEmail(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := r.GetByID(ctx, id); errors.Is(lookupErr, ErrNotFound) {
			return domain.Email{}, ErrNotFound
		}
		return domain.Email{}, ErrStaleStatus
	}
	if err != nil {
		return domain.Email{}, err
	}
	return e, nil
}

// Delete removes an email and, via cascade, its tracking events.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM emails WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
