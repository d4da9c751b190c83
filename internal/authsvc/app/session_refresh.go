package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/observability"
)

// Refresh rotates a session: the record moves to a freshly minted session
// token in one atomic step, and the old token becomes unusable. Of two
// concurrent refreshes of the same token, exactly one wins; the loser
// observes an invalid-token rejection.
func (s *SessionService) Refresh(ctx context.Context, sessionToken string) (*SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "session.refresh")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

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

	newToken, _, err := s.sessionTokens.Mint(record.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("mint session token: %w", err)
	}

	// Rotation keeps the session's identity and expiry; only the token and
	// last_used_at change.
	next := *record
	next.SessionToken = newToken
	next.LastUsedAt = domain.NowRFC3339(s.clock)

	if err := s.rotator.Rotate(ctx, sessionToken, next); err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "rotation_race")))
		span.SetStatus(codes.Error, "rotation failed")
		return nil, err
	}

	accessToken, accessExpiry, err := s.accessTokens.Mint(record.UserID, newToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	sessionExpiry, err := time.Parse(time.RFC3339, record.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse session expiry: %w", err)
	}

	logger.InfoContext(ctx, "session.refreshed",
		"user_id", record.UserID,
		"session_id", record.SessionID,
	)

	return &SessionWithAccess{
		SessionID:        record.SessionID,
		SessionToken:     newToken,
		AccessToken:      accessToken,
		SessionExpiresAt: sessionExpiry,
		AccessExpiresAt:  accessExpiry,
	}, nil
}
