package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.BusinessID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCallEvent records a queue-entry transition.
func (s *Service) LogCallEvent(ctx context.Context, typ EventType, businessID, callID, actorProfileID, message string) error {
	return s.Append(ctx, Event{
		BusinessID:     businessID,
		Type:           typ,
		ActorProfileID: actorProfileID,
		CallID:         callID,
		Message:        message,
	})
}

// LogSessionEvent records an agent check-in/check-out.
func (s *Service) LogSessionEvent(ctx context.Context, typ EventType, businessID, sessionID, actorProfileID, ip string) error {
	return s.Append(ctx, Event{
		BusinessID:     businessID,
		Type:           typ,
		ActorProfileID: actorProfileID,
		SessionID:      sessionID,
		IPAddress:      ip,
	})
}
