package postgres

import (
	"context"
	"database/sql"
	"fmt"

	audit "passage/pkg/platform/audit"
)

// Store implements audit.Store on PostgreSQL via database/sql (lib/pq driver,
// blank-imported by the binary).
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the audit table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS session_audit (
			id          UUID PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
			user_id     TEXT NOT NULL DEFAULT '',
			action      TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("migrate session_audit: %w", err)
	}
	return nil
}

// Append writes one audit event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_audit (id, occurred_at, user_id, action, reason)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.Timestamp, event.UserID, string(event.Action), event.Reason,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByUser returns a user's events, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, user_id, action, reason
		FROM session_audit
		WHERE user_id = $1
		ORDER BY occurred_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var action string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserID, &action, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = audit.Action(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
