package queue

import (
	"fmt"
	"time"
)

// Entry is one in-flight call tracked by the dispatcher.
//
// Multi-tenant invariant: BusinessID is required on every row.
//
// Concurrency invariant: Status is only ever mutated through conditional
// updates (update-if-status-in), never read-then-write. The row is the unit
// of contention between gateway instances.
//
// At most one entry per ProviderCallID may be in a non-terminal status at
// any time; duplicate provider events must not create duplicate live rows.
type Entry struct {
	ID             string `json:"id" db:"id"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`
	BusinessID     string `json:"business_id" db:"business_id"`
	NumberID       string `json:"number_id,omitempty" db:"number_id"`

	CallerPhone   string `json:"caller_phone" db:"caller_phone"`
	CallerName    string `json:"caller_name,omitempty" db:"caller_name"`
	CallerAddress string `json:"caller_address,omitempty" db:"caller_address"`

	Status   Status   `json:"status" db:"status"`
	Priority Priority `json:"priority" db:"priority"`
	CallType CallType `json:"call_type" db:"call_type"`

	AnsweredBy    string     `json:"answered_by,omitempty" db:"answered_by"`
	AnsweredAt    *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	TransferredTo string     `json:"transferred_to,omitempty" db:"transferred_to"`
	TransferredAt *time.Time `json:"transferred_at,omitempty" db:"transferred_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	QueuePosition   int `json:"queue_position,omitempty" db:"queue_position"`
	WaitTimeSeconds int `json:"wait_time_seconds,omitempty" db:"wait_time_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusRinging     Status = "ringing"
	StatusQueued      Status = "queued"
	StatusAnswered    Status = "answered"
	StatusOnHold      Status = "on_hold"
	StatusTransferred Status = "transferred"
	StatusCompleted   Status = "completed"
	StatusMissed      Status = "missed"
	StatusAbandoned   Status = "abandoned"
)

// IsTerminal reports whether no further transitions are allowed.
// Transferred entries are closed too, but their history is written by the
// transfer operation itself, not by status callbacks.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusMissed, StatusAbandoned, StatusTransferred:
		return true
	default:
		return false
	}
}

// LiveStatuses are the statuses an entry can occupy while still in flight.
func LiveStatuses() []Status {
	return []Status{StatusRinging, StatusQueued, StatusAnswered, StatusOnHold}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type CallType string

const (
	CallTypeSales       CallType = "sales"
	CallTypeSupport     CallType = "support"
	CallTypeAppointment CallType = "appointment"
	CallTypeComplaint   CallType = "complaint"
	CallTypeGeneral     CallType = "general"
	CallTypeInternal    CallType = "internal"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionInternal Direction = "internal"
)

// HistoryRecord is the append-only terminal log: one row per completed,
// missed, or abandoned call, and one per transfer leg.
//
// Created exactly once per terminal entry; updated at most once more to
// attach a recording reference that arrives out of band.
type HistoryRecord struct {
	ID         string `json:"id" db:"id"`
	BusinessID string `json:"business_id" db:"business_id"`
	EntryID    string `json:"entry_id" db:"entry_id"`

	CallerPhone string    `json:"caller_phone" db:"caller_phone"`
	CallerName  string    `json:"caller_name,omitempty" db:"caller_name"`
	CallType    CallType  `json:"call_type" db:"call_type"`
	Direction   Direction `json:"direction" db:"direction"`
	Status      Status    `json:"status" db:"status"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	RecordingURL             string `json:"recording_url,omitempty" db:"recording_url"`
	RecordingDurationSeconds int    `json:"recording_duration_seconds,omitempty" db:"recording_duration_seconds"`

	HandledBy string `json:"handled_by,omitempty" db:"handled_by"`
	Notes     string `json:"notes,omitempty" db:"notes"`
	Outcome   string `json:"outcome,omitempty" db:"outcome"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TransferProviderID derives the correlation id for a transfer leg. History
// for a forwarded call can be reconstructed by stripping suffixes back to the
// original provider call id.
func TransferProviderID(originalProviderID string, leg int) string {
	return fmt.Sprintf("%s-xfer-%d", originalProviderID, leg)
}
