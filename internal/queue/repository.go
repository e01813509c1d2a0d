package queue

import (
	"context"
	"errors"
	"time"
)

// Repository is the persistence contract for queue entries and the
// append-only history log.
//
// The conditional-update methods are the concurrency mechanism of the whole
// dispatcher: a transition is applied only if the row's current status is in
// the expected set, in one atomic statement. Implementations must never
// emulate this with a read followed by a write.
type Repository interface {
	EntryByID(ctx context.Context, id string) (Entry, error)

	// CreateEntryIfAbsent inserts e unless a live (non-terminal) entry
	// already exists for e.ProviderCallID, atomically. It returns the live
	// entry either way; the bool reports whether e was inserted. Existence
	// check and insert must be one operation, never a read followed by a
	// write, or two concurrent provider retries both insert.
	CreateEntryIfAbsent(ctx context.Context, e Entry) (Entry, bool, error)

	// LatestEntryByProviderID returns the most recent entry for a provider
	// call id regardless of status. Status and recording callbacks arrive
	// after the entry is closed.
	LatestEntryByProviderID(ctx context.Context, providerCallID string) (Entry, error)

	// UpdateEntryIf applies set to the entry only if its current status is in
	// expected. Returns ErrPreconditionFailed when the row exists but the
	// status does not match, ErrNotFound when there is no such row.
	UpdateEntryIf(ctx context.Context, id string, expected []Status, set EntryUpdate) (Entry, error)

	// TransferEntry atomically applies set to the original entry (same
	// precondition semantics as UpdateEntryIf) and inserts next. Both writes
	// commit or roll back together.
	TransferEntry(ctx context.Context, id string, expected []Status, set EntryUpdate, next Entry) (Entry, Entry, error)

	// ListActive returns live entries for a business, FIFO by creation time.
	ListActive(ctx context.Context, businessID string) ([]Entry, error)
	CountActive(ctx context.Context, businessID string) (int, error)

	// AppendHistory inserts h unless a history row already exists for
	// h.EntryID. Returns false when the row was already there (duplicate
	// provider callback).
	AppendHistory(ctx context.Context, h HistoryRecord) (bool, error)
	HistoryByEntryID(ctx context.Context, entryID string) (HistoryRecord, error)

	// AttachRecording sets the recording fields on the history row for
	// entryID. Returns false (no error) when no history row exists yet.
	AttachRecording(ctx context.Context, entryID, url string, durationSeconds int) (bool, error)
}

// ErrPreconditionFailed is returned by conditional updates when the row's
// current status is outside the expected set. The service maps it to
// ErrAlreadyClaimed or ErrInvalidState depending on the operation.
var ErrPreconditionFailed = errors.New("queue: status precondition failed")

// EntryUpdate is the set of fields a conditional update may change.
// Status and UpdatedAt are always applied; string fields are applied when
// non-empty, pointer fields when non-nil.
type EntryUpdate struct {
	Status Status

	AnsweredBy    string
	AnsweredAt    *time.Time
	TransferredTo string
	TransferredAt *time.Time
	CompletedAt   *time.Time

	WaitTimeSeconds *int

	UpdatedAt time.Time
}
