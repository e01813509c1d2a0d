package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests. Close semantics
// match the Postgres implementation: a session can only be closed while its
// logout time is still unset.
type MemoryRepo struct {
	mu         sync.Mutex
	sessions   map[string]LoginSession // by session id
	extensions map[string]Extension    // by profile id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		sessions:   make(map[string]LoginSession),
		extensions: make(map[string]Extension),
	}
}

func (r *MemoryRepo) CreateSession(ctx context.Context, s LoginSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *MemoryRepo) SessionByID(ctx context.Context, id string) (LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return LoginSession{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) OpenSessionsSince(ctx context.Context, profileID string, since time.Time) ([]LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []LoginSession
	for _, s := range r.sessions {
		if s.ProfileID == profileID && s.Open() && !s.LoginAt.Before(since) {
			out = append(out, s)
		}
	}
	sortByLogin(out)
	return out, nil
}

func (r *MemoryRepo) LatestOpenSession(ctx context.Context, profileID string) (LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *LoginSession
	for _, s := range r.sessions {
		s := s
		if s.ProfileID != profileID || !s.Open() {
			continue
		}
		if found == nil || s.LoginAt.After(found.LoginAt) {
			found = &s
		}
	}
	if found == nil {
		return LoginSession{}, ErrNotFound
	}
	return *found, nil
}

func (r *MemoryRepo) CloseSession(ctx context.Context, id string, logoutAt time.Time, durationSeconds int) (LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !s.Open() {
		return LoginSession{}, ErrNotFound
	}
	s.LogoutAt = &logoutAt
	s.DurationSeconds = durationSeconds
	r.sessions[id] = s
	return s, nil
}

func (r *MemoryRepo) SessionsBetween(ctx context.Context, profileID string, from, to time.Time) ([]LoginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []LoginSession
	for _, s := range r.sessions {
		if s.ProfileID == profileID && !s.LoginAt.Before(from) && s.LoginAt.Before(to) {
			out = append(out, s)
		}
	}
	sortByLogin(out)
	return out, nil
}

func (r *MemoryRepo) ExtensionByProfile(ctx context.Context, profileID string) (Extension, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.extensions[profileID]
	if !ok {
		return Extension{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) SetAvailability(ctx context.Context, profileID string, available bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.extensions[profileID]
	if !ok {
		return nil
	}
	e.Available = available
	e.UpdatedAt = at
	r.extensions[profileID] = e
	return nil
}

// PutExtension seeds an extension row; test helper.
func (r *MemoryRepo) PutExtension(e Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions[e.ProfileID] = e
}

func sortByLogin(sessions []LoginSession) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LoginAt.Before(sessions[j].LoginAt)
	})
}
