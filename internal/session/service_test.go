package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryRepo, *time.Time) {
	t.Helper()

	repo := NewMemoryRepo()
	repo.PutExtension(Extension{
		ProfileID:  "agent-x",
		BusinessID: "biz-1",
		Extension:  "101",
	})

	svc := NewService(repo, nil)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }
	return svc, repo, &now
}

func checkIn(t *testing.T, svc *Service) LoginSession {
	t.Helper()
	sess, err := svc.CheckIn(context.Background(), "agent-x", "biz-1", ClientMeta{
		UserAgent: "test-agent",
		IPAddress: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	return sess
}

func TestCheckIn_OpensSessionAndMarksAvailable(t *testing.T) {
	svc, repo, _ := newTestService(t)

	sess := checkIn(t, svc)

	if !sess.Open() {
		t.Fatalf("expected open session")
	}
	if sess.UserAgent != "test-agent" || sess.IPAddress != "10.0.0.1" {
		t.Fatalf("expected client metadata recorded")
	}

	ext, err := repo.ExtensionByProfile(context.Background(), "agent-x")
	if err != nil {
		t.Fatalf("extension lookup failed: %v", err)
	}
	if !ext.Available {
		t.Fatalf("expected extension marked available")
	}
}

func TestCheckIn_ReconcilesStaleSameDaySession(t *testing.T) {
	svc, repo, now := newTestService(t)

	// 09:00: agent checks in, then the browser dies without a check-out.
	first := checkIn(t, svc)

	// 13:00: agent comes back.
	*now = now.Add(4 * time.Hour)
	second := checkIn(t, svc)

	stale, err := repo.SessionByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stale.Open() {
		t.Fatalf("expected stale session force-closed on re-check-in")
	}
	if stale.DurationSeconds != 4*60*60 {
		t.Fatalf("expected stale session credited 4h, got %ds", stale.DurationSeconds)
	}

	// Exactly one open session remains.
	open, err := repo.OpenSessionsSince(context.Background(), "agent-x", time.Time{})
	if err != nil {
		t.Fatalf("open sessions lookup failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != second.ID {
		t.Fatalf("expected only the new session open, got %d", len(open))
	}
}

func TestCheckOut_ClosesAndComputesDuration(t *testing.T) {
	svc, repo, now := newTestService(t)

	sess := checkIn(t, svc)
	*now = now.Add(90 * time.Minute)

	closed, err := svc.CheckOut(context.Background(), "agent-x", sess.ID)
	if err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	if closed.Open() {
		t.Fatalf("expected session closed")
	}
	if closed.DurationSeconds != 90*60 {
		t.Fatalf("expected 90m duration, got %ds", closed.DurationSeconds)
	}

	ext, _ := repo.ExtensionByProfile(context.Background(), "agent-x")
	if ext.Available {
		t.Fatalf("expected extension marked unavailable")
	}
}

func TestCheckOut_LatestOpenWhenNoSessionID(t *testing.T) {
	svc, _, now := newTestService(t)

	checkIn(t, svc)
	*now = now.Add(time.Minute)

	closed, err := svc.CheckOut(context.Background(), "agent-x", "")
	if err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	if closed.DurationSeconds != 60 {
		t.Fatalf("expected 60s duration, got %ds", closed.DurationSeconds)
	}
}

func TestCheckOut_ErrorsWithoutOpenSession(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.CheckOut(context.Background(), "agent-x", ""); !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession, got %v", err)
	}

	// Double check-out after a successful one fails the same way.
	sess := checkIn(t, svc)
	if _, err := svc.CheckOut(context.Background(), "agent-x", sess.ID); err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	if _, err := svc.CheckOut(context.Background(), "agent-x", sess.ID); !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession on double check-out, got %v", err)
	}
}

func TestCheckOut_RejectsForeignSession(t *testing.T) {
	svc, _, _ := newTestService(t)

	sess := checkIn(t, svc)
	if _, err := svc.CheckOut(context.Background(), "agent-y", sess.ID); !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession for another agent's session, got %v", err)
	}
}

func TestCloseOnDisconnect_BestEffort(t *testing.T) {
	svc, repo, now := newTestService(t)

	// Nothing open: swallowed, no panic.
	svc.CloseOnDisconnect(context.Background(), "agent-x")

	sess := checkIn(t, svc)
	*now = now.Add(10 * time.Minute)
	svc.CloseOnDisconnect(context.Background(), "agent-x")

	got, _ := repo.SessionByID(context.Background(), sess.ID)
	if got.Open() {
		t.Fatalf("expected disconnect to close the session")
	}
	if got.DurationSeconds != 600 {
		t.Fatalf("expected 600s duration, got %ds", got.DurationSeconds)
	}
}

func TestTodayTotal_IncludesLiveSession(t *testing.T) {
	svc, _, now := newTestService(t)

	// Closed morning block: one hour.
	checkIn(t, svc)
	*now = now.Add(time.Hour)
	if _, err := svc.CheckOut(context.Background(), "agent-x", ""); err != nil {
		t.Fatalf("check-out failed: %v", err)
	}

	// Open afternoon block, 30 minutes in.
	*now = now.Add(2 * time.Hour)
	checkIn(t, svc)
	*now = now.Add(30 * time.Minute)

	total, err := svc.TodayTotal(context.Background(), "agent-x")
	if err != nil {
		t.Fatalf("today total failed: %v", err)
	}
	if total != 90*60 {
		t.Fatalf("expected 90m total, got %ds", total)
	}
}

func TestSetAvailability_Toggle(t *testing.T) {
	svc, repo, _ := newTestService(t)

	if err := svc.SetAvailability(context.Background(), "agent-x", true); err != nil {
		t.Fatalf("set availability failed: %v", err)
	}
	ext, _ := repo.ExtensionByProfile(context.Background(), "agent-x")
	if !ext.Available {
		t.Fatalf("expected available")
	}

	if err := svc.SetAvailability(context.Background(), "agent-x", false); err != nil {
		t.Fatalf("set availability failed: %v", err)
	}
	ext, _ = repo.ExtensionByProfile(context.Background(), "agent-x")
	if ext.Available {
		t.Fatalf("expected unavailable")
	}
}
