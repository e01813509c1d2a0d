package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - business_id is required for tenancy isolation.
// - Actor and ip capture are best-effort; never block call flows on audit failures.
//
// Storage (Postgres): table audit_events with an INSERT-only policy.
type Event struct {
	ID         string `json:"id" db:"id"`
	BusinessID string `json:"business_id" db:"business_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorProfileID is the agent causing the event, when one exists.
	// Provider-driven events (status callbacks) have no actor.
	ActorProfileID string `json:"actor_profile_id,omitempty" db:"actor_profile_id"`
	ActorRole      string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress captures the resolved client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	CallID    string `json:"call_id,omitempty" db:"call_id"`
	SessionID string `json:"session_id,omitempty" db:"session_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallCreated     EventType = "call_created"
	EventTypeCallAnswered    EventType = "call_answered"
	EventTypeCallHeld        EventType = "call_held"
	EventTypeCallResumed     EventType = "call_resumed"
	EventTypeCallTransferred EventType = "call_transferred"
	EventTypeCallEnded       EventType = "call_ended"
	EventTypeSessionCheckIn  EventType = "session_check_in"
	EventTypeSessionCheckOut EventType = "session_check_out"
)
