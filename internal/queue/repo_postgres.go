package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"callcenter-platform/pkg/utils"
)

// PostgresRepo persists queue entries and history in Postgres via
// database/sql (pgx stdlib driver).
//
// Conditional updates are single UPDATE ... WHERE status IN (...) statements
// so competing claims are serialized by the database, not by this process.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const entryColumns = `
	id, provider_call_id, business_id, COALESCE(number_id, ''),
	caller_phone, COALESCE(caller_name, ''), COALESCE(caller_address, ''),
	status, priority, call_type,
	COALESCE(answered_by, ''), answered_at,
	COALESCE(transferred_to, ''), transferred_at, completed_at,
	COALESCE(queue_position, 0), COALESCE(wait_time_seconds, 0),
	created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEntry(ctx context.Context, ex execer, e Entry, onConflict string) (int64, error) {
	q := `
		INSERT INTO call_queue_entries (
			id, provider_call_id, business_id, number_id,
			caller_phone, caller_name, caller_address,
			status, priority, call_type,
			answered_by, answered_at, transferred_to, transferred_at, completed_at,
			queue_position, wait_time_seconds, created_at, updated_at
		) VALUES (
			$1, $2, $3, NULLIF($4, ''),
			$5, NULLIF($6, ''), NULLIF($7, ''),
			$8, $9, $10,
			NULLIF($11, ''), $12, NULLIF($13, ''), $14, $15,
			NULLIF($16, 0), NULLIF($17, 0), $18, $19
		)` + onConflict

	res, err := ex.ExecContext(ctx, q,
		e.ID, e.ProviderCallID, e.BusinessID, e.NumberID,
		e.CallerPhone, e.CallerName, e.CallerAddress,
		string(e.Status), string(e.Priority), string(e.CallType),
		e.AnsweredBy, e.AnsweredAt, e.TransferredTo, e.TransferredAt, e.CompletedAt,
		e.QueuePosition, e.WaitTimeSeconds, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) EntryByID(ctx context.Context, id string) (Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM call_queue_entries WHERE id = $1`
	return scanEntry(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) CreateEntryIfAbsent(ctx context.Context, e Entry) (Entry, bool, error) {
	// call_queue_entries carries a partial unique index on provider_call_id
	// over the live statuses. Concurrent provider retries both hit the INSERT
	// and the database lets exactly one through, same shape as AppendHistory.
	onConflict := `
		ON CONFLICT (provider_call_id)
		WHERE status IN (` + statusList(LiveStatuses()) + `)
		DO NOTHING`

	n, err := insertEntry(ctx, r.db, e, onConflict)
	if err != nil {
		return Entry{}, false, err
	}
	if n > 0 {
		return e, true, nil
	}
	existing, err := r.activeEntryByProviderID(ctx, e.ProviderCallID)
	if err != nil {
		return Entry{}, false, err
	}
	return existing, false, nil
}

func (r *PostgresRepo) activeEntryByProviderID(ctx context.Context, providerCallID string) (Entry, error) {
	q := `SELECT ` + entryColumns + `
		FROM call_queue_entries
		WHERE provider_call_id = $1 AND status IN (` + statusList(LiveStatuses()) + `)
		ORDER BY created_at DESC
		LIMIT 1`
	return scanEntry(r.db.QueryRowContext(ctx, q, providerCallID))
}

func (r *PostgresRepo) LatestEntryByProviderID(ctx context.Context, providerCallID string) (Entry, error) {
	q := `SELECT ` + entryColumns + `
		FROM call_queue_entries
		WHERE provider_call_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return scanEntry(r.db.QueryRowContext(ctx, q, providerCallID))
}

func (r *PostgresRepo) UpdateEntryIf(ctx context.Context, id string, expected []Status, set EntryUpdate) (Entry, error) {
	return updateEntryIf(ctx, r.db, id, expected, set)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func updateEntryIf(ctx context.Context, qr queryRower, id string, expected []Status, set EntryUpdate) (Entry, error) {
	sets := []string{"status = $1", "updated_at = $2"}
	args := []any{string(set.Status), set.UpdatedAt}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if set.AnsweredBy != "" {
		add("answered_by", set.AnsweredBy)
	}
	if set.AnsweredAt != nil {
		add("answered_at", *set.AnsweredAt)
	}
	if set.TransferredTo != "" {
		add("transferred_to", set.TransferredTo)
	}
	if set.TransferredAt != nil {
		add("transferred_at", *set.TransferredAt)
	}
	if set.CompletedAt != nil {
		add("completed_at", *set.CompletedAt)
	}
	if set.WaitTimeSeconds != nil {
		add("wait_time_seconds", *set.WaitTimeSeconds)
	}

	args = append(args, id)
	q := fmt.Sprintf(`
		UPDATE call_queue_entries
		SET %s
		WHERE id = $%d AND status IN (%s)
		RETURNING %s`,
		strings.Join(sets, ", "), len(args), statusList(expected), entryColumns,
	)

	e, err := scanEntry(qr.QueryRowContext(ctx, q, args...))
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing row from a lost race.
		var exists bool
		probe := qr.QueryRowContext(ctx, `SELECT TRUE FROM call_queue_entries WHERE id = $1`, id)
		if probeErr := probe.Scan(&exists); probeErr != nil {
			if errors.Is(probeErr, sql.ErrNoRows) {
				return Entry{}, ErrNotFound
			}
			return Entry{}, probeErr
		}
		return Entry{}, ErrPreconditionFailed
	}
	return e, err
}

func (r *PostgresRepo) TransferEntry(ctx context.Context, id string, expected []Status, set EntryUpdate, next Entry) (Entry, Entry, error) {
	var closed Entry
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		e, err := updateEntryIf(ctx, tx, id, expected, set)
		if err != nil {
			return err
		}
		closed = e
		_, err = insertEntry(ctx, tx, next, "")
		return err
	})
	if err != nil {
		return Entry{}, Entry{}, err
	}
	return closed, next, nil
}

func (r *PostgresRepo) ListActive(ctx context.Context, businessID string) ([]Entry, error) {
	q := `SELECT ` + entryColumns + `
		FROM call_queue_entries
		WHERE business_id = $1 AND status IN (` + statusList(LiveStatuses()) + `)
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, q, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CountActive(ctx context.Context, businessID string) (int, error) {
	q := `SELECT COUNT(*) FROM call_queue_entries
		WHERE business_id = $1 AND status IN (` + statusList(LiveStatuses()) + `)`
	var n int
	if err := r.db.QueryRowContext(ctx, q, businessID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) AppendHistory(ctx context.Context, h HistoryRecord) (bool, error) {
	// call_history_records has a unique index on entry_id; duplicate provider
	// callbacks land on the conflict path and insert nothing.
	const q = `
		INSERT INTO call_history_records (
			id, business_id, entry_id, caller_phone, caller_name,
			call_type, direction, status, duration_seconds,
			recording_url, recording_duration_seconds,
			handled_by, notes, outcome, created_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''),
			$6, $7, $8, $9,
			NULLIF($10, ''), NULLIF($11, 0),
			NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''), $15
		)
		ON CONFLICT (entry_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, q,
		h.ID, h.BusinessID, h.EntryID, h.CallerPhone, h.CallerName,
		string(h.CallType), string(h.Direction), string(h.Status), h.DurationSeconds,
		h.RecordingURL, h.RecordingDurationSeconds,
		h.HandledBy, h.Notes, h.Outcome, h.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) HistoryByEntryID(ctx context.Context, entryID string) (HistoryRecord, error) {
	const q = `
		SELECT id, business_id, entry_id, caller_phone, COALESCE(caller_name, ''),
			call_type, direction, status, duration_seconds,
			COALESCE(recording_url, ''), COALESCE(recording_duration_seconds, 0),
			COALESCE(handled_by, ''), COALESCE(notes, ''), COALESCE(outcome, ''), created_at
		FROM call_history_records
		WHERE entry_id = $1`

	var h HistoryRecord
	err := r.db.QueryRowContext(ctx, q, entryID).Scan(
		&h.ID, &h.BusinessID, &h.EntryID, &h.CallerPhone, &h.CallerName,
		&h.CallType, &h.Direction, &h.Status, &h.DurationSeconds,
		&h.RecordingURL, &h.RecordingDurationSeconds,
		&h.HandledBy, &h.Notes, &h.Outcome, &h.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return HistoryRecord{}, ErrNotFound
	}
	if err != nil {
		return HistoryRecord{}, err
	}
	return h, nil
}

func (r *PostgresRepo) AttachRecording(ctx context.Context, entryID, url string, durationSeconds int) (bool, error) {
	const q = `
		UPDATE call_history_records
		SET recording_url = $1, recording_duration_seconds = $2
		WHERE entry_id = $3 AND recording_url IS NULL`

	res, err := r.db.ExecContext(ctx, q, url, durationSeconds, entryID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// statusList renders an IN-list from internal status constants. Values never
// come from user input.
func statusList(statuses []Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row *sql.Row) (Entry, error) {
	e, err := scanEntryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func scanEntryRow(rs rowScanner) (Entry, error) {
	var e Entry
	var answeredAt, transferredAt, completedAt sql.NullTime

	err := rs.Scan(
		&e.ID, &e.ProviderCallID, &e.BusinessID, &e.NumberID,
		&e.CallerPhone, &e.CallerName, &e.CallerAddress,
		&e.Status, &e.Priority, &e.CallType,
		&e.AnsweredBy, &answeredAt,
		&e.TransferredTo, &transferredAt, &completedAt,
		&e.QueuePosition, &e.WaitTimeSeconds,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}

	if answeredAt.Valid {
		e.AnsweredAt = &answeredAt.Time
	}
	if transferredAt.Valid {
		e.TransferredAt = &transferredAt.Time
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return e, nil
}
