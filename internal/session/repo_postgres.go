package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists login sessions and extensions in Postgres.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const sessionColumns = `
	id, profile_id, business_id, login_at, logout_at,
	COALESCE(duration_seconds, 0), COALESCE(user_agent, ''), COALESCE(ip_address, ''), created_at`

func (r *PostgresRepo) CreateSession(ctx context.Context, s LoginSession) error {
	const q = `
		INSERT INTO call_center_login_sessions (
			id, profile_id, business_id, login_at, logout_at,
			duration_seconds, user_agent, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), NULLIF($7, ''), NULLIF($8, ''), $9)`

	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.ProfileID, s.BusinessID, s.LoginAt, s.LogoutAt,
		s.DurationSeconds, s.UserAgent, s.IPAddress, s.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) SessionByID(ctx context.Context, id string) (LoginSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM call_center_login_sessions WHERE id = $1`
	return scanSession(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) OpenSessionsSince(ctx context.Context, profileID string, since time.Time) ([]LoginSession, error) {
	q := `SELECT ` + sessionColumns + `
		FROM call_center_login_sessions
		WHERE profile_id = $1 AND logout_at IS NULL AND login_at >= $2
		ORDER BY login_at ASC`
	return r.querySessions(ctx, q, profileID, since)
}

func (r *PostgresRepo) LatestOpenSession(ctx context.Context, profileID string) (LoginSession, error) {
	q := `SELECT ` + sessionColumns + `
		FROM call_center_login_sessions
		WHERE profile_id = $1 AND logout_at IS NULL
		ORDER BY login_at DESC
		LIMIT 1`
	return scanSession(r.db.QueryRowContext(ctx, q, profileID))
}

func (r *PostgresRepo) CloseSession(ctx context.Context, id string, logoutAt time.Time, durationSeconds int) (LoginSession, error) {
	// Conditional on logout_at IS NULL: a disconnect close racing an explicit
	// check-out closes the row exactly once.
	q := `
		UPDATE call_center_login_sessions
		SET logout_at = $1, duration_seconds = $2
		WHERE id = $3 AND logout_at IS NULL
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRowContext(ctx, q, logoutAt, durationSeconds, id))
}

func (r *PostgresRepo) SessionsBetween(ctx context.Context, profileID string, from, to time.Time) ([]LoginSession, error) {
	q := `SELECT ` + sessionColumns + `
		FROM call_center_login_sessions
		WHERE profile_id = $1 AND login_at >= $2 AND login_at < $3
		ORDER BY login_at ASC`
	return r.querySessions(ctx, q, profileID, from, to)
}

func (r *PostgresRepo) ExtensionByProfile(ctx context.Context, profileID string) (Extension, error) {
	const q = `
		SELECT id, profile_id, business_id, extension, available, updated_at
		FROM employee_extensions
		WHERE profile_id = $1`

	var e Extension
	err := r.db.QueryRowContext(ctx, q, profileID).Scan(
		&e.ID, &e.ProfileID, &e.BusinessID, &e.Extension, &e.Available, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Extension{}, ErrNotFound
	}
	if err != nil {
		return Extension{}, err
	}
	return e, nil
}

func (r *PostgresRepo) SetAvailability(ctx context.Context, profileID string, available bool, at time.Time) error {
	const q = `
		UPDATE employee_extensions
		SET available = $1, updated_at = $2
		WHERE profile_id = $3`

	// Zero rows is fine: not every agent has an extension provisioned.
	_, err := r.db.ExecContext(ctx, q, available, at, profileID)
	return err
}

func (r *PostgresRepo) querySessions(ctx context.Context, q string, args ...any) ([]LoginSession, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoginSession
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (LoginSession, error) {
	s, err := scanSessionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return LoginSession{}, ErrNotFound
	}
	return s, err
}

func scanSessionRow(rs rowScanner) (LoginSession, error) {
	var s LoginSession
	var logoutAt sql.NullTime

	err := rs.Scan(
		&s.ID, &s.ProfileID, &s.BusinessID, &s.LoginAt, &logoutAt,
		&s.DurationSeconds, &s.UserAgent, &s.IPAddress, &s.CreatedAt,
	)
	if err != nil {
		return LoginSession{}, err
	}
	if logoutAt.Valid {
		s.LogoutAt = &logoutAt.Time
	}
	return s, nil
}
