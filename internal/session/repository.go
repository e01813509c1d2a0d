package session

import (
	"context"
	"time"
)

// Repository is the persistence contract for login sessions and extensions.
//
// CloseSession must be conditional on the session still being open (the SQL
// form is UPDATE ... WHERE id = ? AND logout_at IS NULL) so a best-effort
// disconnect close racing an explicit check-out closes the row once.
type Repository interface {
	CreateSession(ctx context.Context, s LoginSession) error
	SessionByID(ctx context.Context, id string) (LoginSession, error)

	// OpenSessionsSince returns the profile's open sessions whose login time
	// is on or after since. Used by the check-in reconciliation rule.
	OpenSessionsSince(ctx context.Context, profileID string, since time.Time) ([]LoginSession, error)

	// LatestOpenSession returns the profile's most recent open session, by
	// login time, or ErrNotFound.
	LatestOpenSession(ctx context.Context, profileID string) (LoginSession, error)

	// CloseSession closes an open session; ErrNotFound when the session does
	// not exist or is already closed.
	CloseSession(ctx context.Context, id string, logoutAt time.Time, durationSeconds int) (LoginSession, error)

	// SessionsBetween returns all of the profile's sessions with login time
	// in [from, to), open or closed.
	SessionsBetween(ctx context.Context, profileID string, from, to time.Time) ([]LoginSession, error)

	ExtensionByProfile(ctx context.Context, profileID string) (Extension, error)

	// SetAvailability is idempotent; setting the same value twice is harmless.
	SetAvailability(ctx context.Context, profileID string, available bool, at time.Time) error
}
