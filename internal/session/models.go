package session

import "time"

// LoginSession is one agent's continuous working period.
//
// Invariant: at most one session per agent with a null LogoutAt ("open") at
// any time. The invariant is not enforced by eager detection; a session left
// open by an ungraceful disconnect is force-closed by the agent's next
// check-in.
type LoginSession struct {
	ID         string `json:"id" db:"id"`
	ProfileID  string `json:"profile_id" db:"profile_id"`
	BusinessID string `json:"business_id" db:"business_id"`

	LoginAt  time.Time  `json:"login_at" db:"login_at"`
	LogoutAt *time.Time `json:"logout_at,omitempty" db:"logout_at"`

	// DurationSeconds is computed at close; zero while the session is open.
	DurationSeconds int `json:"duration_seconds,omitempty" db:"duration_seconds"`

	UserAgent string `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Open reports whether the session has not been closed yet.
func (s LoginSession) Open() bool { return s.LogoutAt == nil }

// Extension is the per-agent routing/availability record. Availability is
// mutated by exactly two actors: the agent's explicit toggle and the tracker
// on check-out. Both writes are idempotent.
type Extension struct {
	ID         string    `json:"id" db:"id"`
	ProfileID  string    `json:"profile_id" db:"profile_id"`
	BusinessID string    `json:"business_id" db:"business_id"`
	Extension  string    `json:"extension" db:"extension"`
	Available  bool      `json:"available" db:"available"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ClientMeta is optional client metadata captured at check-in.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}
