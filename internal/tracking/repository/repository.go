package repository

import (
	"context"
	"errors"

	emaildomain "outreach_backend/internal/emails/domain"
	"outreach_backend/internal/tracking/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrEmailNotFound is returned when an event references a missing email
	// or an unknown tracking token.
	ErrEmailNotFound = errors.New("email not found for tracking event")
)

const foreignKeyViolationCode = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}

// Repository persists the append-only event log. The append and the
// companion email counter/status mutation commit in one transaction, so an
// event can never exist without its counter increment or vice versa.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new tracking repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ResolveTrackingID maps an inbound tracking token to its email and owning
// lead ids.
func (r *Repository) ResolveTrackingID(ctx context.Context, token uuid.UUID) (emailID, leadID uuid.UUID, err error) {
	err = r.pool.QueryRow(ctx, `SELECT id, lead_id FROM emails WHERE tracking_id = $1`, token).Scan(&emailID, &leadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, uuid.Nil, ErrEmailNotFound
	}
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return emailID, leadID, nil
}

// Record appends the event and applies its email side effects atomically:
// counter increment, sticky first-engagement timestamp, and the status
// advance guarded by the email transition table.
func (r *Repository) Record(ctx context.Context, ev domain.Event) (domain.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO tracking_events (email_id, event_type, ip_address, user_agent, referer, clicked_url, extra_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		ev.EmailID, ev.EventType, ev.IPAddress, ev.UserAgent, ev.Referer, ev.ClickedURL, ev.ExtraData, ev.Timestamp,
	)
	if err := row.Scan(&ev.ID); err != nil {
		if isForeignKeyViolation(err) {
			return domain.Event{}, ErrEmailNotFound
		}
		return domain.Event{}, err
	}

	if err := r.applyEmailSideEffects(ctx, tx, ev); err != nil {
		return domain.Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

func (r *Repository) applyEmailSideEffects(ctx context.Context, tx pgx.Tx, ev domain.Event) error {
	var tag pgconn.CommandTag
	var err error

	switch ev.EventType {
	case domain.EventOpen:
		tag, err = tx.Exec(ctx, `
			UPDATE emails
			SET open_count = open_count + 1,
			    opened_at = COALESCE(opened_at, now()),
			    status = CASE WHEN status = ANY($2) THEN $3 ELSE status END,
			    updated_at = now()
			WHERE id = $1`,
			ev.EmailID, sourcesOf(emaildomain.StatusOpened), emaildomain.StatusOpened)
	case domain.EventClick:
		tag, err = tx.Exec(ctx, `
			UPDATE emails
			SET click_count = click_count + 1,
			    clicked_at = COALESCE(clicked_at, now()),
			    status = CASE WHEN status = ANY($2) THEN $3 ELSE status END,
			    updated_at = now()
			WHERE id = $1`,
			ev.EmailID, sourcesOf(emaildomain.StatusClicked), emaildomain.StatusClicked)
	case domain.EventReply:
		tag, err = tx.Exec(ctx, `
			UPDATE emails
			SET replied_at = COALESCE(replied_at, now()),
			    status = CASE WHEN status = ANY($2) THEN $3 ELSE status END,
			    updated_at = now()
			WHERE id = $1`,
			ev.EmailID, sourcesOf(emaildomain.StatusReplied), emaildomain.StatusReplied)
	case domain.EventBounce:
		tag, err = tx.Exec(ctx, `
			UPDATE emails
			SET status = CASE WHEN status = ANY($2) THEN $3 ELSE status END,
			    updated_at = now()
			WHERE id = $1`,
			ev.EmailID, sourcesOf(emaildomain.StatusBounced), emaildomain.StatusBounced)
	default:
		return errors.New("unknown tracking event type: " + string(ev.EventType))
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmailNotFound
	}
	return nil
}

// sourcesOf converts the legal source statuses for a target into the text
// array form the status guard compares against.
func sourcesOf(target emaildomain.Status) []string {
	sources := emaildomain.Machine.SourcesOf(target)
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}

const eventColumns = `id, email_id, event_type, ip_address, user_agent, referer, clicked_url, extra_data, created_at`

// ListByEmail returns the event log for one email, newest first.
func (r *Repository) ListByEmail(ctx context.Context, emailID uuid.UUID, skip, limit int) ([]domain.Event, int, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`, COUNT(*) OVER () AS total
		FROM tracking_events
		WHERE email_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, emailID, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Event, 0)
	total := 0
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(
			&ev.ID, &ev.EmailID, &ev.EventType, &ev.IPAddress, &ev.UserAgent,
			&ev.Referer, &ev.ClickedURL, &ev.ExtraData, &ev.Timestamp, &total,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, ev)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return items, total, nil
}

// CountByType groups events by type, optionally scoped to one email.
// Absent types are omitted, not zero-filled.
func (r *Repository) CountByType(ctx context.Context, emailID *uuid.UUID) (map[domain.EventType]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_type, COUNT(*)
		FROM tracking_events
		WHERE ($1::uuid IS NULL OR email_id = $1)
		GROUP BY event_type
	`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.EventType]int)
	for rows.Next() {
		var eventType domain.EventType
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		out[eventType] = count
	}
	return out, rows.Err()
}

// UniqueOpens counts distinct origin addresses among OPEN events for one
// email. Null addresses collapse into a single bucket.
func (r *Repository) UniqueOpens(ctx context.Context, emailID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT COALESCE(ip_address, ''))
		FROM tracking_events
		WHERE email_id = $1 AND event_type = $2
	`, emailID, domain.EventOpen).Scan(&count)
	return count, err
}

// StatsCounts holds the raw counters the aggregator derives rates from.
type StatsCounts struct {
	SentCount    int
	UniqueOpens  int
	UniqueClicks int
	Replies      int
	Bounces      int
}

// nonSentStatuses are the email statuses that do not count as sent. Every
// engagement status implies the mail left the system.
var nonSentStatuses = []string{
	string(emaildomain.StatusDraft),
	string(emaildomain.StatusPending),
	string(emaildomain.StatusFailed),
}

// CollectStats gathers the counters for stats computation, optionally scoped
// to one email. Unique opens and clicks dedup per (email, address) pair, not
// per address globally: the same recipient address opening two different
// emails counts twice, so the global figure stays the sum of the per-email
// figures UniqueOpens reports.
func (r *Repository) CollectStats(ctx context.Context, emailID *uuid.UUID) (StatsCounts, error) {
	var counts StatsCounts

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM emails
		WHERE status <> ALL($2)
		  AND ($1::uuid IS NULL OR id = $1)
	`, emailID, nonSentStatuses).Scan(&counts.SentCount)
	if err != nil {
		return StatsCounts{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT (email_id, COALESCE(ip_address, '')))
		FROM tracking_events
		WHERE event_type = $2 AND ($1::uuid IS NULL OR email_id = $1)
	`, emailID, domain.EventOpen).Scan(&counts.UniqueOpens)
	if err != nil {
		return StatsCounts{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT (email_id, COALESCE(ip_address, '')))
		FROM tracking_events
		WHERE event_type = $2 AND ($1::uuid IS NULL OR email_id = $1)
	`, emailID, domain.EventClick).Scan(&counts.UniqueClicks)
	if err != nil {
		return StatsCounts{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE event_type = $2),
			COUNT(*) FILTER (WHERE event_type = $3)
		FROM tracking_events
		WHERE ($1::uuid IS NULL OR email_id = $1)
	`, emailID, domain.EventReply, domain.EventBounce).Scan(&counts.Replies, &counts.Bounces)
	if err != nil {
		return StatsCounts{}, err
	}

	return counts, nil
}
