package token

import (
	"fmt"
	"time"
)

// ServiceMinter mints outbound inter-service tokens for one calling
// relationship (this service toward one sibling). The audience scopes the
// token to the callee; the service claim names this service.
type ServiceMinter struct {
	cfg     Config
	service string
}

// NewServiceMinter creates a minter that signs tokens naming service as the
// caller.
func NewServiceMinter(cfg Config, service string) *ServiceMinter {
	return &ServiceMinter{cfg: cfg, service: service}
}

// Mint creates a fresh short-lived service token. A new token is minted per
// outbound call; service tokens are never cached.
func (m *ServiceMinter) Mint() (string, time.Time, error) {
	now := m.cfg.Clock.Now().UTC()
	expiresAt := now.Add(m.cfg.Lifetime)

	claims := ServiceClaims{
		RegisteredClaims: registered(m.cfg, m.service, now, expiresAt),
		Service:          m.service,
	}

	signed, err := sign(&claims, m.cfg)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign service token: %w", err)
	}
	return signed, expiresAt, nil
}

// ServiceVerifier verifies inbound tokens from one sibling service. The
// issuer selects the sibling's token family; the service claim must name the
// expected caller exactly.
type ServiceVerifier struct {
	cfg      Config
	expected string
}

// NewServiceVerifier creates a verifier for tokens issued by the sibling whose
// family is described by cfg. expected is the exact service claim value
// accepted.
func NewServiceVerifier(cfg Config, expected string) *ServiceVerifier {
	return &ServiceVerifier{cfg: cfg, expected: expected}
}

// Verify validates signature, issuer family, audience, expiry, and the exact
// service claim. Failures surface as the single invalid-token kind.
func (v *ServiceVerifier) Verify(tokenString string) (*ServiceClaims, error) {
	var claims ServiceClaims
	if err := parse(tokenString, &claims, v.cfg); err != nil {
		return nil, err
	}
	if claims.Service != v.expected {
		return nil, errInvalidToken()
	}
	return &claims, nil
}
