package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"usersapi/internal/audit"
)

// Store persists audit events to the audit_events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event under a fresh id.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (id, occurred_at, actor_email, operation, detail, request_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		event.Timestamp,
		event.ActorEmail,
		string(event.Operation),
		event.Detail,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
