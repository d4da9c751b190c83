package token

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are the claims carried by short-lived access tokens.
// SessionToken binds the access token to exactly one session record; the
// session manager rejects access tokens whose session is revoked or expired.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID       string `json:"user_id"`
	SessionToken string `json:"session_token"`
}

// SessionClaims are the claims carried by long-lived rotating session tokens.
// The registered ID (jti) makes every minted session token unique.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ServiceClaims are the claims carried by short-lived inter-service tokens.
// Service names the authenticated caller relationship.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Service string `json:"service"`
}
