package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/decode-platform/auth-service/internal/domain"
)

// errInvalidToken is the single surface for every token-validation failure.
// Callers and clients must not learn which check failed.
func errInvalidToken() error {
	return fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
}

// ValidateAccess verifies an access token and resolves the session it is
// bound to. Rejects if the session is missing, revoked, or expired; the
// rejection never discloses which.
func (s *SessionService) ValidateAccess(ctx context.Context, accessToken string) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "session.validate_access")
	defer span.End()

	claims, err := s.accessTokens.Verify(accessToken)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "access_jwt")))
		span.SetStatus(codes.Error, "invalid access token")
		return nil, errInvalidToken()
	}

	record, err := s.loadActiveSession(ctx, claims.SessionToken)
	if err != nil {
		span.SetStatus(codes.Error, "session check failed")
		return nil, err
	}
	if record.UserID != claims.UserID {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "access_binding")))
		span.SetStatus(codes.Error, "session binding mismatch")
		return nil, errInvalidToken()
	}

	s.touchInBackground(ctx, record.SessionToken)

	return &Identity{
		UserID:       record.UserID,
		SessionID:    record.SessionID,
		SessionToken: record.SessionToken,
	}, nil
}

// ValidateSession verifies a session token and runs the same record checks as
// ValidateAccess, using the token itself as the lookup key.
func (s *SessionService) ValidateSession(ctx context.Context, sessionToken string) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "session.validate_session")
	defer span.End()

	claims, err := s.sessionTokens.Verify(sessionToken)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_jwt")))
		span.SetStatus(codes.Error, "invalid session token")
		return nil, errInvalidToken()
	}

	record, err := s.loadActiveSession(ctx, sessionToken)
	if err != nil {
		span.SetStatus(codes.Error, "session check failed")
		return nil, err
	}
	if record.UserID != claims.UserID {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_binding")))
		span.SetStatus(codes.Error, "session binding mismatch")
		return nil, errInvalidToken()
	}

	return &Identity{
		UserID:       record.UserID,
		SessionID:    record.SessionID,
		SessionToken: record.SessionToken,
	}, nil
}

// loadActiveSession fetches a session by token and enforces the active
// invariant: is_active, not revoked, not past expiry. All failures collapse
// into the invalid-token kind.
func (s *SessionService) loadActiveSession(ctx context.Context, sessionToken string) (*SessionRecord, error) {
	record, err := s.sessions.GetByToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_missing")))
			return nil, errInvalidToken()
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !record.IsActive || record.RevokedAt != "" {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_revoked")))
		return nil, errInvalidToken()
	}

	expiry, err := time.Parse(time.RFC3339, record.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse session expiry: %w", err)
	}
	if !s.clock.Now().UTC().Before(expiry) {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_expired")))
		return nil, errInvalidToken()
	}

	return record, nil
}

// touchInBackground updates last_used_at without blocking the request.
func (s *SessionService) touchInBackground(ctx context.Context, sessionToken string) {
	touchCtx := context.WithoutCancel(ctx)
	now := domain.NowRFC3339(s.clock)
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.sessions.Touch(touchCtx, sessionToken, now); err != nil {
			s.logger.WarnContext(touchCtx, "failed to touch session", "error", err)
		}
	}()
}
