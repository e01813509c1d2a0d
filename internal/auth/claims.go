package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: BusinessID must be present for all agent activity.
// ProfileID identifies the agent profile across queue and session records.
type Claims struct {
	jwt.RegisteredClaims

	ProfileID  string    `json:"profile_id"`
	BusinessID string    `json:"business_id"`
	Role       string    `json:"role"`
	TokenType  TokenType `json:"token_type"`
}
