package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/directory"
	"callcenter-platform/internal/realtime"
	"callcenter-platform/pkg/logger"

	"github.com/google/uuid"
)

// Service is the queue dispatcher. It owns the call lifecycle state machine:
//
//	ringing → queued → answered ⇄ on_hold → transferred | completed
//	ringing/queued → missed | abandoned (provider-driven)
//
// Concurrency model: the service holds no cross-request state. Every
// transition is a conditional update executed by the repository, so multiple
// gateway instances can run this code concurrently and exactly one claim
// wins any race.
//
// Fan-out and audit are best-effort; a publish failure never fails the
// transition that caused it.
type Service struct {
	repo      Repository
	numbers   directory.Resolver
	publisher realtime.Publisher
	audit     *audit.Service

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, numbers directory.Resolver, publisher realtime.Publisher, auditSvc *audit.Service) *Service {
	if publisher == nil {
		publisher = realtime.NoopPublisher{}
	}
	return &Service{
		repo:      repo,
		numbers:   numbers,
		publisher: publisher,
		audit:     auditSvc,
		clock:     time.Now,
	}
}

var (
	// ErrNotConfigured means the dialed number maps to no business; the call
	// must be rejected at the provider boundary, no entry is created.
	ErrNotConfigured = errors.New("queue: number not configured")

	// ErrAlreadyClaimed means another agent won the answer race (or the
	// caller hung up first). Do not retry; re-fetch current state.
	ErrAlreadyClaimed = errors.New("queue: call already claimed")

	// ErrInvalidState means the entry is not in a status that allows the
	// requested transition.
	ErrInvalidState = errors.New("queue: invalid state for transition")

	ErrNotFound        = errors.New("queue: not found")
	ErrInvalidArgument = errors.New("queue: invalid argument")
)

// InboundCall is the gateway's translation of a provider inbound-call event.
type InboundCall struct {
	CallerPhone    string
	CalledNumber   string
	ProviderCallID string
	CallerName     string
}

// IngestInboundCall resolves the dialed number to a business and creates a
// ringing entry. Repeated events for the same provider call id while the
// original entry is live return that entry unchanged with created=false;
// providers retry webhooks and a retry must not enqueue the caller twice.
// The duplicate check and the insert are one repository operation, so
// concurrent retries also collapse to a single entry.
func (s *Service) IngestInboundCall(ctx context.Context, in InboundCall) (Entry, bool, error) {
	if in.CallerPhone == "" || in.CalledNumber == "" || in.ProviderCallID == "" {
		return Entry{}, false, ErrInvalidArgument
	}

	num, err := s.numbers.ResolveNumber(ctx, in.CalledNumber)
	if errors.Is(err, directory.ErrNumberNotFound) {
		return Entry{}, false, ErrNotConfigured
	}
	if err != nil {
		return Entry{}, false, err
	}

	now := s.clock().UTC()
	position, err := s.repo.CountActive(ctx, num.BusinessID)
	if err != nil {
		return Entry{}, false, err
	}

	e := Entry{
		ID:             uuid.NewString(),
		ProviderCallID: in.ProviderCallID,
		BusinessID:     num.BusinessID,
		NumberID:       num.ID,
		CallerPhone:    in.CallerPhone,
		CallerName:     in.CallerName,
		Status:         StatusRinging,
		Priority:       PriorityMedium,
		CallType:       CallTypeGeneral,
		QueuePosition:  position + 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e, created, err := s.repo.CreateEntryIfAbsent(ctx, e)
	if err != nil {
		return Entry{}, false, err
	}
	if !created {
		return e, false, nil
	}

	s.notify(ctx, realtime.EventCallCreated, e)
	s.auditCall(ctx, audit.EventTypeCallCreated, e, "", "inbound call enqueued")
	return e, true, nil
}

// Answer claims the call for agentID. The transition succeeds only if the
// entry is currently ringing or queued; this is the at-most-one-answer
// guarantee. The loser of a race gets ErrAlreadyClaimed and must re-fetch.
func (s *Service) Answer(ctx context.Context, callID, agentID string) (Entry, error) {
	if callID == "" || agentID == "" {
		return Entry{}, ErrInvalidArgument
	}

	// CreatedAt is immutable, so the pre-read cannot go stale; wait time is
	// measured up to the claim, not the end of the call, and rides the same
	// conditional update as the claim itself.
	orig, err := s.repo.EntryByID(ctx, callID)
	if err != nil {
		return Entry{}, err
	}

	now := s.clock().UTC()
	wait := int(now.Sub(orig.CreatedAt).Seconds())
	e, err := s.repo.UpdateEntryIf(ctx, callID,
		[]Status{StatusRinging, StatusQueued},
		EntryUpdate{
			Status:          StatusAnswered,
			AnsweredBy:      agentID,
			AnsweredAt:      &now,
			WaitTimeSeconds: &wait,
			UpdatedAt:       now,
		},
	)
	if errors.Is(err, ErrPreconditionFailed) {
		return Entry{}, ErrAlreadyClaimed
	}
	if err != nil {
		return Entry{}, err
	}

	s.notify(ctx, realtime.EventCallUpdated, e)
	s.auditCall(ctx, audit.EventTypeCallAnswered, e, agentID, "call answered")
	return e, nil
}

// Hold parks an answered call.
func (s *Service) Hold(ctx context.Context, callID string) (Entry, error) {
	return s.simpleTransition(ctx, callID,
		[]Status{StatusAnswered}, StatusOnHold,
		audit.EventTypeCallHeld, "call placed on hold")
}

// Resume takes a held call back off hold.
func (s *Service) Resume(ctx context.Context, callID string) (Entry, error) {
	return s.simpleTransition(ctx, callID,
		[]Status{StatusOnHold}, StatusAnswered,
		audit.EventTypeCallResumed, "call resumed")
}

func (s *Service) simpleTransition(ctx context.Context, callID string, expected []Status, to Status, auditType audit.EventType, msg string) (Entry, error) {
	if callID == "" {
		return Entry{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	e, err := s.repo.UpdateEntryIf(ctx, callID, expected, EntryUpdate{Status: to, UpdatedAt: now})
	if errors.Is(err, ErrPreconditionFailed) {
		return Entry{}, ErrInvalidState
	}
	if err != nil {
		return Entry{}, err
	}

	s.notify(ctx, realtime.EventCallUpdated, e)
	s.auditCall(ctx, auditType, e, e.AnsweredBy, msg)
	return e, nil
}

// Transfer closes the call in status transferred and atomically opens a new
// ringing entry pre-assigned to targetAgentID. The new entry's provider call
// id derives from the original so the full chain can be reconstructed. Both
// writes happen in one repository transaction.
func (s *Service) Transfer(ctx context.Context, callID, targetAgentID string) (Entry, Entry, error) {
	if callID == "" || targetAgentID == "" {
		return Entry{}, Entry{}, ErrInvalidArgument
	}

	orig, err := s.repo.EntryByID(ctx, callID)
	if err != nil {
		return Entry{}, Entry{}, err
	}

	now := s.clock().UTC()
	next := Entry{
		ID:             uuid.NewString(),
		ProviderCallID: nextTransferProviderID(orig.ProviderCallID),
		BusinessID:     orig.BusinessID,
		NumberID:       orig.NumberID,
		CallerPhone:    orig.CallerPhone,
		CallerName:     orig.CallerName,
		CallerAddress:  orig.CallerAddress,
		Status:         StatusRinging,
		Priority:       orig.Priority,
		CallType:       orig.CallType,
		AnsweredBy:     targetAgentID, // pre-assigned; still must be claimed
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	closed, created, err := s.repo.TransferEntry(ctx, callID,
		[]Status{StatusAnswered, StatusOnHold},
		EntryUpdate{
			Status:        StatusTransferred,
			TransferredTo: targetAgentID,
			TransferredAt: &now,
			UpdatedAt:     now,
		},
		next,
	)
	if errors.Is(err, ErrPreconditionFailed) {
		return Entry{}, Entry{}, ErrInvalidState
	}
	if err != nil {
		return Entry{}, Entry{}, err
	}

	// The transfer leg gets its own history row.
	s.appendHistory(ctx, closed, StatusTransferred, int(now.Sub(closed.CreatedAt).Seconds()), closed.AnsweredBy, "", "")

	s.notify(ctx, realtime.EventCallUpdated, closed)
	s.notify(ctx, realtime.EventCallCreated, created)
	s.auditCall(ctx, audit.EventTypeCallTransferred, closed, closed.AnsweredBy,
		fmt.Sprintf("call transferred to %s", targetAgentID))
	return closed, created, nil
}

// End completes the call and writes its history row. Duration is measured
// from entry creation, so queue wait counts toward the caller's experience.
func (s *Service) End(ctx context.Context, callID, notes, outcome string) (Entry, error) {
	if callID == "" {
		return Entry{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	e, err := s.repo.UpdateEntryIf(ctx, callID,
		[]Status{StatusAnswered, StatusOnHold},
		EntryUpdate{Status: StatusCompleted, CompletedAt: &now, UpdatedAt: now},
	)
	if errors.Is(err, ErrPreconditionFailed) {
		return Entry{}, ErrInvalidState
	}
	if err != nil {
		return Entry{}, err
	}

	s.appendHistory(ctx, e, StatusCompleted, int(now.Sub(e.CreatedAt).Seconds()), e.AnsweredBy, notes, outcome)

	s.notify(ctx, realtime.EventCallEnded, e)
	s.auditCall(ctx, audit.EventTypeCallEnded, e, e.AnsweredBy, "call completed")
	return e, nil
}

// IngestStatusCallback maps provider status vocabulary onto terminal
// statuses and closes the entry if it is still live. History append is
// idempotent: duplicate callbacks for the same provider call id produce
// exactly one row.
func (s *Service) IngestStatusCallback(ctx context.Context, providerCallID, providerStatus string, durationSeconds int) (Entry, error) {
	if providerCallID == "" {
		return Entry{}, ErrInvalidArgument
	}

	terminal, ok := mapProviderStatus(providerStatus)
	if !ok {
		// Non-terminal progress updates are acknowledged and ignored.
		return Entry{}, nil
	}

	e, err := s.repo.LatestEntryByProviderID(ctx, providerCallID)
	if err != nil {
		return Entry{}, err
	}

	now := s.clock().UTC()
	if !e.Status.IsTerminal() {
		updated, uerr := s.repo.UpdateEntryIf(ctx, e.ID, LiveStatuses(),
			EntryUpdate{Status: terminal, CompletedAt: &now, UpdatedAt: now})
		if uerr == nil {
			e = updated
		} else if !errors.Is(uerr, ErrPreconditionFailed) {
			return Entry{}, uerr
		}
		// Lost races mean someone else closed it; fall through to history.
	}

	// Transferred entries already got their history row from Transfer, and
	// completed ones from End; AppendHistory short-circuits on the existing
	// row either way.
	duration := durationSeconds
	if duration <= 0 {
		duration = int(now.Sub(e.CreatedAt).Seconds())
	}
	s.appendHistory(ctx, e, terminal, duration, e.AnsweredBy, "", "")

	s.notify(ctx, realtime.EventCallEnded, e)
	return e, nil
}

// AttachRecording adds the recording reference to the call's history row.
// Recording callbacks can race ahead of status callbacks, so a missing
// history row is a no-op, not an error.
func (s *Service) AttachRecording(ctx context.Context, providerCallID, recordingURL string, durationSeconds int) error {
	if providerCallID == "" || recordingURL == "" {
		return ErrInvalidArgument
	}

	e, err := s.repo.LatestEntryByProviderID(ctx, providerCallID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.repo.AttachRecording(ctx, e.ID, recordingURL, durationSeconds)
	return err
}

// ListActive returns the business's live calls in FIFO order. Priority is
// surfaced to agents but never reorders the queue.
func (s *Service) ListActive(ctx context.Context, businessID string) ([]Entry, error) {
	if businessID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListActive(ctx, businessID)
}

// GetEntry returns one entry scoped to the caller's business.
func (s *Service) GetEntry(ctx context.Context, businessID, callID string) (Entry, error) {
	if businessID == "" || callID == "" {
		return Entry{}, ErrInvalidArgument
	}
	e, err := s.repo.EntryByID(ctx, callID)
	if err != nil {
		return Entry{}, err
	}
	if e.BusinessID != businessID {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *Service) appendHistory(ctx context.Context, e Entry, terminal Status, durationSeconds int, handledBy, notes, outcome string) {
	h := HistoryRecord{
		ID:              uuid.NewString(),
		BusinessID:      e.BusinessID,
		EntryID:         e.ID,
		CallerPhone:     e.CallerPhone,
		CallerName:      e.CallerName,
		CallType:        e.CallType,
		Direction:       DirectionInbound,
		Status:          terminal,
		DurationSeconds: durationSeconds,
		HandledBy:       handledBy,
		Notes:           notes,
		Outcome:         outcome,
		CreatedAt:       s.clock().UTC(),
	}
	if _, err := s.repo.AppendHistory(ctx, h); err != nil {
		logger.From(ctx).Error("history append failed", "entry_id", e.ID, "err", err)
	}
}

func (s *Service) notify(ctx context.Context, typ realtime.EventType, e Entry) {
	err := s.publisher.Publish(ctx, realtime.Event{
		Type:       typ,
		BusinessID: e.BusinessID,
		Payload:    e,
		EmittedAt:  s.clock().UTC(),
	})
	if err != nil {
		logger.From(ctx).Warn("realtime publish failed", "entry_id", e.ID, "err", err)
	}
}

func (s *Service) auditCall(ctx context.Context, typ audit.EventType, e Entry, actor, msg string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogCallEvent(ctx, typ, e.BusinessID, e.ID, actor, msg); err != nil {
		logger.From(ctx).Warn("audit append failed", "entry_id", e.ID, "err", err)
	}
}

// mapProviderStatus translates provider vocabulary to terminal statuses.
// Anything unrecognized or non-terminal maps to no-op.
func mapProviderStatus(providerStatus string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "completed":
		return StatusCompleted, true
	case "busy", "no-answer":
		return StatusMissed, true
	case "canceled", "cancelled", "failed":
		return StatusAbandoned, true
	default:
		return "", false
	}
}

// nextTransferProviderID extends the transfer chain: CA1 → CA1-xfer-1 →
// CA1-xfer-2, keyed off the original provider id.
func nextTransferProviderID(providerID string) string {
	base := providerID
	leg := 1
	if i := strings.LastIndex(providerID, "-xfer-"); i >= 0 {
		if n, err := strconv.Atoi(providerID[i+len("-xfer-"):]); err == nil {
			base = providerID[:i]
			leg = n + 1
		}
	}
	return TransferProviderID(base, leg)
}
