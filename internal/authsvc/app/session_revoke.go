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
	"github.com/decode-platform/auth-service/internal/observability"
)

// SessionInfo is the client-facing view of an active session.
type SessionInfo struct {
	SessionID           string
	DeviceFingerprintID string
	App                 string
	CreatedAt           string
	LastUsedAt          string
	ExpiresAt           string
}

// RevokeByID revokes one session owned by userID. Revoking an
// already-revoked session succeeds.
func (s *SessionService) RevokeByID(ctx context.Context, userID, sessionID string) error {
	ctx, span := tracer.Start(ctx, "session.revoke_by_id")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	record, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			span.SetStatus(codes.Error, "session not found")
			return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("get session: %w", err)
	}
	if record.UserID != userID {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "revoke_ownership")))
		span.SetStatus(codes.Error, "not session owner")
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrForbidden)
	}

	if !record.IsActive {
		// Already revoked; monotonic state, idempotent success.
		return nil
	}

	if err := s.sessions.Revoke(ctx, record.SessionToken, domain.NowRFC3339(s.clock)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke session: %w", err)
	}

	sessionsRevokedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "by_id")))
	logger.InfoContext(ctx, "session.revoked", "user_id", userID, "session_id", sessionID)
	return nil
}

// RevokeByFingerprint revokes every session of userID bound to the given
// fingerprint. This is the fan-out leg of device revocation.
func (s *SessionService) RevokeByFingerprint(ctx context.Context, userID, fingerprintID string) error {
	ctx, span := tracer.Start(ctx, "session.revoke_by_fingerprint")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	sessions, err := s.sessions.ListByFingerprint(ctx, fingerprintID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("list sessions by fingerprint: %w", err)
	}

	now := domain.NowRFC3339(s.clock)
	revoked := 0
	for _, record := range sessions {
		if record.UserID != userID || !record.IsActive {
			continue
		}
		if err := s.sessions.Revoke(ctx, record.SessionToken, now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("revoke session %s: %w", record.SessionID, err)
		}
		revoked++
	}

	if revoked > 0 {
		sessionsRevokedTotal.Add(ctx, int64(revoked), metric.WithAttributes(attribute.String("reason", "fingerprint")))
	}
	logger.InfoContext(ctx, "session.revoked_by_fingerprint",
		"user_id", userID,
		"fingerprint_id", fingerprintID,
		"count", revoked,
	)
	return nil
}

// ListActive returns the user's sessions that are active, unrevoked, and not
// past expiry.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]SessionInfo, error) {
	ctx, span := tracer.Start(ctx, "session.list_active")
	defer span.End()

	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := s.clock.Now().UTC()
	active := make([]SessionInfo, 0, len(sessions))
	for _, record := range sessions {
		if !record.IsActive || record.RevokedAt != "" {
			continue
		}
		expiry, parseErr := time.Parse(time.RFC3339, record.ExpiresAt)
		if parseErr != nil || !now.Before(expiry) {
			continue
		}
		active = append(active, SessionInfo{
			SessionID:           record.SessionID,
			DeviceFingerprintID: record.DeviceFingerprintID,
			App:                 record.App,
			CreatedAt:           record.CreatedAt,
			LastUsedAt:          record.LastUsedAt,
			ExpiresAt:           record.ExpiresAt,
		})
	}
	return active, nil
}

// CleanupExpired marks the user's expired-but-still-active sessions as
// revoked. Intended for background use; security never depends on its timing.
func (s *SessionService) CleanupExpired(ctx context.Context, userID string) (int, error) {
	ctx, span := tracer.Start(ctx, "session.cleanup_expired")
	defer span.End()

	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	now := s.clock.Now().UTC()
	nowStr := domain.NowRFC3339(s.clock)
	cleaned := 0
	for _, record := range sessions {
		if !record.IsActive {
			continue
		}
		expiry, parseErr := time.Parse(time.RFC3339, record.ExpiresAt)
		if parseErr != nil || now.Before(expiry) {
			continue
		}
		if err := s.sessions.Revoke(ctx, record.SessionToken, nowStr); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return cleaned, fmt.Errorf("revoke expired session %s: %w", record.SessionID, err)
		}
		cleaned++
	}

	if cleaned > 0 {
		sessionsRevokedTotal.Add(ctx, int64(cleaned), metric.WithAttributes(attribute.String("reason", "expired")))
	}
	return cleaned, nil
}

// Logout validates a session token and revokes its session.
func (s *SessionService) Logout(ctx context.Context, sessionToken string) error {
	ctx, span := tracer.Start(ctx, "session.logout")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	identity, err := s.ValidateSession(ctx, sessionToken)
	if err != nil {
		span.SetStatus(codes.Error, "invalid session token")
		return err
	}

	if err := s.sessions.Revoke(ctx, identity.SessionToken, domain.NowRFC3339(s.clock)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke session: %w", err)
	}

	sessionsRevokedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "logout")))
	logger.InfoContext(ctx, "session.logout", "user_id", identity.UserID, "session_id", identity.SessionID)
	return nil
}
