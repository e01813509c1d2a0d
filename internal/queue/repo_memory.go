package queue

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests. It reproduces the
// same conditional-update semantics as the Postgres implementation under a
// single mutex, so race behavior in tests mirrors production.
type MemoryRepo struct {
	mu      sync.Mutex
	entries map[string]Entry         // by entry id
	history map[string]HistoryRecord // by entry id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		entries: make(map[string]Entry),
		history: make(map[string]HistoryRecord),
	}
}

func (r *MemoryRepo) EntryByID(ctx context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) CreateEntryIfAbsent(ctx context.Context, e Entry) (Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.ProviderCallID == e.ProviderCallID && !existing.Status.IsTerminal() {
			return existing, false, nil
		}
	}
	r.entries[e.ID] = e
	return e, true, nil
}

func (r *MemoryRepo) LatestEntryByProviderID(ctx context.Context, providerCallID string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *Entry
	for _, e := range r.entries {
		e := e
		if e.ProviderCallID != providerCallID {
			continue
		}
		if found == nil || e.CreatedAt.After(found.CreatedAt) {
			found = &e
		}
	}
	if found == nil {
		return Entry{}, ErrNotFound
	}
	return *found, nil
}

func (r *MemoryRepo) UpdateEntryIf(ctx context.Context, id string, expected []Status, set EntryUpdate) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(id, expected, set)
}

func (r *MemoryRepo) updateLocked(id string, expected []Status, set EntryUpdate) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if !statusIn(e.Status, expected) {
		return Entry{}, ErrPreconditionFailed
	}

	e.Status = set.Status
	e.UpdatedAt = set.UpdatedAt
	if set.AnsweredBy != "" {
		e.AnsweredBy = set.AnsweredBy
	}
	if set.AnsweredAt != nil {
		e.AnsweredAt = set.AnsweredAt
	}
	if set.TransferredTo != "" {
		e.TransferredTo = set.TransferredTo
	}
	if set.TransferredAt != nil {
		e.TransferredAt = set.TransferredAt
	}
	if set.CompletedAt != nil {
		e.CompletedAt = set.CompletedAt
	}
	if set.WaitTimeSeconds != nil {
		e.WaitTimeSeconds = *set.WaitTimeSeconds
	}

	r.entries[id] = e
	return e, nil
}

func (r *MemoryRepo) TransferEntry(ctx context.Context, id string, expected []Status, set EntryUpdate, next Entry) (Entry, Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	closed, err := r.updateLocked(id, expected, set)
	if err != nil {
		return Entry{}, Entry{}, err
	}
	r.entries[next.ID] = next
	return closed, next, nil
}

func (r *MemoryRepo) ListActive(ctx context.Context, businessID string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	for _, e := range r.entries {
		if e.BusinessID == businessID && !e.Status.IsTerminal() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) CountActive(ctx context.Context, businessID string) (int, error) {
	entries, err := r.ListActive(ctx, businessID)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (r *MemoryRepo) AppendHistory(ctx context.Context, h HistoryRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.history[h.EntryID]; ok {
		return false, nil
	}
	r.history[h.EntryID] = h
	return true, nil
}

func (r *MemoryRepo) HistoryByEntryID(ctx context.Context, entryID string) (HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.history[entryID]
	if !ok {
		return HistoryRecord{}, ErrNotFound
	}
	return h, nil
}

func (r *MemoryRepo) AttachRecording(ctx context.Context, entryID, url string, durationSeconds int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.history[entryID]
	if !ok || h.RecordingURL != "" {
		return false, nil
	}
	h.RecordingURL = url
	h.RecordingDurationSeconds = durationSeconds
	r.history[entryID] = h
	return true, nil
}

// HistoryCount returns the number of history rows; test helper.
func (r *MemoryRepo) HistoryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

func statusIn(s Status, set []Status) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}
