// Package token signs and verifies the token families issued by this service:
// access tokens, rotating session tokens, and inter-service tokens. All are
// compact HMAC-SHA256 JWTs with per-family secrets, issuers, and lifetimes.
//
// Verification failures collapse into a single domain.ErrUnauthorized: callers
// (and clients) never learn whether the signature, issuer, audience, or expiry
// check failed.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/decode-platform/auth-service/internal/domain"
)

// Config holds the signing parameters for one token family.
type Config struct {
	Secret   domain.SecretString
	Issuer   string
	Audience string
	Lifetime time.Duration
	Clock    domain.Clock
}

// AccessCodec mints and verifies access tokens.
type AccessCodec struct {
	cfg Config
}

// NewAccessCodec creates a codec for the access-token family.
func NewAccessCodec(cfg Config) *AccessCodec {
	return &AccessCodec{cfg: cfg}
}

// Mint creates a signed access token binding userID to sessionToken.
// Returns the compact token and its expiry.
func (c *AccessCodec) Mint(userID, sessionToken string) (string, time.Time, error) {
	now := c.cfg.Clock.Now().UTC()
	expiresAt := now.Add(c.cfg.Lifetime)

	claims := AccessClaims{
		RegisteredClaims: registered(c.cfg, userID, now, expiresAt),
		UserID:           userID,
		SessionToken:     sessionToken,
	}

	signed, err := sign(&claims, c.cfg)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and fully validates an access token.
func (c *AccessCodec) Verify(tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parse(tokenString, &claims, c.cfg); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.SessionToken == "" {
		return nil, errInvalidToken()
	}
	return &claims, nil
}

// SessionCodec mints and verifies rotating session tokens.
type SessionCodec struct {
	cfg Config
}

// NewSessionCodec creates a codec for the session-token family.
func NewSessionCodec(cfg Config) *SessionCodec {
	return &SessionCodec{cfg: cfg}
}

// Mint creates a signed session token for userID. The embedded jti makes each
// minted token unique across all sessions, past and present.
func (c *SessionCodec) Mint(userID string) (string, time.Time, error) {
	now := c.cfg.Clock.Now().UTC()
	expiresAt := now.Add(c.cfg.Lifetime)

	claims := SessionClaims{
		RegisteredClaims: registered(c.cfg, userID, now, expiresAt),
		UserID:           userID,
	}

	signed, err := sign(&claims, c.cfg)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and fully validates a session token. Record-level checks
// (active, not revoked) belong to the session manager.
func (c *SessionCodec) Verify(tokenString string) (*SessionClaims, error) {
	var claims SessionClaims
	if err := parse(tokenString, &claims, c.cfg); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errInvalidToken()
	}
	return &claims, nil
}

// registered builds the RegisteredClaims shared by all families.
func registered(cfg Config, subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
}

// sign produces a compact HS256 JWT for the given claims.
func sign(claims jwt.Claims, cfg Config) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(cfg.Secret.Expose()))
}

// parse validates signature, issuer, audience, and expiry. Any failure is
// reported as the single invalid-token kind.
func parse(tokenString string, claims jwt.Claims, cfg Config) error {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(cfg.Clock.Now),
		jwt.WithExpirationRequired(),
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret.Expose()), nil
	}, opts...)
	if err != nil {
		return errInvalidToken()
	}
	return nil
}

// errInvalidToken is the single verification-failure surface. The cause is
// deliberately not wrapped: which check failed must not be disclosed.
func errInvalidToken() error {
	return fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
}
