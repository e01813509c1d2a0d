package session

import (
	"context"
	"errors"
	"time"

	"callcenter-platform/internal/audit"
	"callcenter-platform/pkg/logger"

	"github.com/google/uuid"
)

// Service is the session tracker. It manages agent check-in/check-out and
// the reconciliation of sessions left open by ungraceful disconnects.
//
// Reconciliation model: the best-effort close-on-disconnect signal is an
// optimization only. The actual correctness mechanism is lazy: each check-in
// force-closes any session the agent left open earlier the same day, so a
// session is never silently lost and an agent never has two open sessions.
//
// Session identity is always caller-supplied; the tracker keeps no ambient
// "current session" state and is safe to share across concurrent requests.
type Service struct {
	repo  Repository
	audit *audit.Service

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, audit: auditSvc, clock: time.Now}
}

var (
	// ErrNoOpenSession means a check-out found nothing to close.
	ErrNoOpenSession = errors.New("session: no open session")

	ErrNotFound        = errors.New("session: not found")
	ErrInvalidArgument = errors.New("session: invalid argument")
)

// CheckIn opens a new work session. Any session the agent left open since
// the start of the current day is force-closed first, with its duration
// computed from its own login time.
func (s *Service) CheckIn(ctx context.Context, profileID, businessID string, meta ClientMeta) (LoginSession, error) {
	if profileID == "" || businessID == "" {
		return LoginSession{}, ErrInvalidArgument
	}

	now := s.clock().UTC()

	stale, err := s.repo.OpenSessionsSince(ctx, profileID, startOfDay(now))
	if err != nil {
		return LoginSession{}, err
	}
	for _, open := range stale {
		dur := int(now.Sub(open.LoginAt).Seconds())
		if _, cerr := s.repo.CloseSession(ctx, open.ID, now, dur); cerr != nil && !errors.Is(cerr, ErrNotFound) {
			return LoginSession{}, cerr
		}
		logger.From(ctx).Info("stale session reconciled",
			"session_id", open.ID, "profile_id", profileID, "duration_seconds", dur)
	}

	sess := LoginSession{
		ID:         uuid.NewString(),
		ProfileID:  profileID,
		BusinessID: businessID,
		LoginAt:    now,
		UserAgent:  meta.UserAgent,
		IPAddress:  meta.IPAddress,
		CreatedAt:  now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return LoginSession{}, err
	}

	if err := s.repo.SetAvailability(ctx, profileID, true, now); err != nil {
		logger.From(ctx).Warn("availability update failed", "profile_id", profileID, "err", err)
	}

	s.auditSession(ctx, audit.EventTypeSessionCheckIn, sess, meta.IPAddress)
	return sess, nil
}

// CheckOut closes a session. With a session id it closes exactly that
// session; otherwise it closes the agent's most recent open one. The agent's
// extension is marked unavailable either way.
func (s *Service) CheckOut(ctx context.Context, profileID, sessionID string) (LoginSession, error) {
	if profileID == "" {
		return LoginSession{}, ErrInvalidArgument
	}

	now := s.clock().UTC()

	var open LoginSession
	var err error
	if sessionID != "" {
		open, err = s.repo.SessionByID(ctx, sessionID)
		if errors.Is(err, ErrNotFound) {
			return LoginSession{}, ErrNoOpenSession
		}
		if err != nil {
			return LoginSession{}, err
		}
		if open.ProfileID != profileID || !open.Open() {
			return LoginSession{}, ErrNoOpenSession
		}
	} else {
		open, err = s.repo.LatestOpenSession(ctx, profileID)
		if errors.Is(err, ErrNotFound) {
			return LoginSession{}, ErrNoOpenSession
		}
		if err != nil {
			return LoginSession{}, err
		}
	}

	dur := int(now.Sub(open.LoginAt).Seconds())
	closed, err := s.repo.CloseSession(ctx, open.ID, now, dur)
	if errors.Is(err, ErrNotFound) {
		// Lost a race with another close; nothing left to do.
		return LoginSession{}, ErrNoOpenSession
	}
	if err != nil {
		return LoginSession{}, err
	}

	if err := s.repo.SetAvailability(ctx, profileID, false, now); err != nil {
		logger.From(ctx).Warn("availability update failed", "profile_id", profileID, "err", err)
	}

	s.auditSession(ctx, audit.EventTypeSessionCheckOut, closed, "")
	return closed, nil
}

// CloseOnDisconnect handles the fire-and-forget unload signal from a closing
// browser tab. Failures are logged and swallowed: if this close never lands,
// the next check-in reconciles the session.
func (s *Service) CloseOnDisconnect(ctx context.Context, profileID string) {
	if profileID == "" {
		return
	}
	if _, err := s.CheckOut(ctx, profileID, ""); err != nil && !errors.Is(err, ErrNoOpenSession) {
		logger.From(ctx).Warn("disconnect close failed", "profile_id", profileID, "err", err)
	}
}

// TodayTotal sums the agent's worked seconds for the current day. The open
// session, if any, contributes now - login live, so totals are current without
// requiring a close.
func (s *Service) TodayTotal(ctx context.Context, profileID string) (int, error) {
	if profileID == "" {
		return 0, ErrInvalidArgument
	}

	now := s.clock().UTC()
	from := startOfDay(now)
	sessions, err := s.repo.SessionsBetween(ctx, profileID, from, from.Add(24*time.Hour))
	if err != nil {
		return 0, err
	}

	total := 0
	for _, sess := range sessions {
		if sess.Open() {
			total += int(now.Sub(sess.LoginAt).Seconds())
			continue
		}
		total += sess.DurationSeconds
	}
	return total, nil
}

// SetAvailability is the agent's explicit availability toggle.
func (s *Service) SetAvailability(ctx context.Context, profileID string, available bool) error {
	if profileID == "" {
		return ErrInvalidArgument
	}
	return s.repo.SetAvailability(ctx, profileID, available, s.clock().UTC())
}

// Extension returns the agent's extension record.
func (s *Service) Extension(ctx context.Context, profileID string) (Extension, error) {
	if profileID == "" {
		return Extension{}, ErrInvalidArgument
	}
	return s.repo.ExtensionByProfile(ctx, profileID)
}

func (s *Service) auditSession(ctx context.Context, typ audit.EventType, sess LoginSession, ip string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogSessionEvent(ctx, typ, sess.BusinessID, sess.ID, sess.ProfileID, ip); err != nil {
		logger.From(ctx).Warn("audit append failed", "session_id", sess.ID, "err", err)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
