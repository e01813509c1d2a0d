package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events to the audit_events table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events (
			id, business_id, type, actor_profile_id, actor_role,
			ip_address, call_id, session_id, message, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.BusinessID, string(e.Type), nullable(e.ActorProfileID), nullable(e.ActorRole),
		nullable(e.IPAddress), nullable(e.CallID), nullable(e.SessionID),
		nullable(e.Message), nullable(e.Metadata), e.CreatedAt,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
