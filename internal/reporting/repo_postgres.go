package reporting

import (
	"context"
	"database/sql"
	"time"
)

// PostgresRepo aggregates over call_history_records and
// call_center_login_sessions. Sessions still open contribute now - login_at.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) AgentDaySummaries(ctx context.Context, businessID string, from, to, now time.Time) ([]AgentDaySummary, error) {
	const q = `
		WITH calls AS (
			SELECT handled_by AS profile_id,
				COUNT(*) AS handled_calls,
				COALESCE(SUM(duration_seconds), 0) AS talk_seconds
			FROM call_history_records
			WHERE business_id = $1 AND handled_by IS NOT NULL
				AND created_at >= $2 AND created_at < $3
			GROUP BY handled_by
		),
		worked AS (
			SELECT profile_id,
				COALESCE(SUM(
					COALESCE(duration_seconds, EXTRACT(EPOCH FROM $4::timestamptz - login_at)::int)
				), 0) AS logged_in_seconds
			FROM call_center_login_sessions
			WHERE business_id = $1 AND login_at >= $2 AND login_at < $3
			GROUP BY profile_id
		)
		SELECT COALESCE(c.profile_id, w.profile_id),
			COALESCE(c.handled_calls, 0),
			COALESCE(c.talk_seconds, 0),
			COALESCE(w.logged_in_seconds, 0)
		FROM calls c
		FULL OUTER JOIN worked w ON w.profile_id = c.profile_id
		ORDER BY 1`

	rows, err := r.db.QueryContext(ctx, q, businessID, from, to, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentDaySummary
	for rows.Next() {
		var s AgentDaySummary
		if err := rows.Scan(&s.ProfileID, &s.HandledCalls, &s.TalkSeconds, &s.LoggedInSeconds); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
