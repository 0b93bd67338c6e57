package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Migrate(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS audit_events (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			subject     TEXT NOT NULL DEFAULT '',
			role        TEXT NOT NULL DEFAULT '',
			path        TEXT NOT NULL DEFAULT '',
			ip          TEXT NOT NULL DEFAULT '',
			user_agent  TEXT NOT NULL DEFAULT '',
			request_id  TEXT NOT NULL DEFAULT '',
			detail      TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS audit_events_subject_idx ON audit_events (subject, occurred_at DESC);
		CREATE INDEX IF NOT EXISTS audit_events_occurred_idx ON audit_events (occurred_at);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("migrate audit_events: %w", err)
	}
	return nil
}

// Insert is idempotent on the event id so redelivered stream entries are harmless.
func (r *Repository) Insert(ctx context.Context, e Event) error {
	const query = `
		INSERT INTO audit_events (
			id, kind, subject, role, path, ip, user_agent, request_id, detail, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID,
		string(e.Kind),
		e.Subject,
		e.Role,
		e.Path,
		e.IP,
		e.UserAgent,
		e.RequestID,
		e.Detail,
		e.OccurredAt,
	)
	return err
}

func (r *Repository) ListBySubject(ctx context.Context, subject string, limit int) ([]Event, error) {
	const query = `
		SELECT id, kind, subject, role, path, ip, user_agent, request_id, detail, occurred_at
		FROM audit_events
		WHERE subject = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, subject, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(
			&e.ID,
			&kind,
			&e.Subject,
			&e.Role,
			&e.Path,
			&e.IP,
			&e.UserAgent,
			&e.RequestID,
			&e.Detail,
			&e.OccurredAt,
		); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteBefore removes events older than cutoff and returns how many went.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM audit_events WHERE occurred_at < $1`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
