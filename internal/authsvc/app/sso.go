package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/observability"
)

// FingerprintChecker is the slice of the fingerprint manager the SSO broker
// needs.
type FingerprintChecker interface {
	Check(ctx context.Context, userID, fingerprintHash string) (*FingerprintRecord, error)
}

// SSOServiceConfig holds the dependencies for SSOService.
type SSOServiceConfig struct {
	Ephemeral    EphemeralStore
	Fingerprints FingerprintChecker
	Sessions     SessionCreator
	Clock        domain.Clock
	Logger       *slog.Logger
}

// SSOService brokers cross-app handoffs: a trusted user on one app exchanges
// a single-use sixty-second token for a fresh session on another.
type SSOService struct {
	ephemeral    EphemeralStore
	fingerprints FingerprintChecker
	sessions     SessionCreator
	clock        domain.Clock
	logger       *slog.Logger
}

// NewSSOService creates an SSOService with the given dependencies.
func NewSSOService(cfg SSOServiceConfig) *SSOService {
	return &SSOService{
		ephemeral:    cfg.Ephemeral,
		fingerprints: cfg.Fingerprints,
		sessions:     cfg.Sessions,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
}

// Create mints an SSO token for userID toward the target app. The caller must
// present a fingerprint the user has already trusted.
func (s *SSOService) Create(ctx context.Context, userID, app, fingerprintHash string) (string, error) {
	ctx, span := tracer.Start(ctx, "sso.create")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	fp, err := s.fingerprints.Check(ctx, userID, fingerprintHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "sso_fingerprint")))
			span.SetStatus(codes.Error, "fingerprint not found")
			return "", fmt.Errorf("sso: %w", domain.ErrDeviceNotTrusted)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("check fingerprint: %w", err)
	}
	if !fp.IsTrusted {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "sso_fingerprint")))
		span.SetStatus(codes.Error, "fingerprint not trusted")
		return "", fmt.Errorf("sso: %w", domain.ErrDeviceNotTrusted)
	}

	token, err := domain.GenerateOpaqueToken()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("generate sso token: %w", err)
	}

	grant := SSOGrant{UserID: userID, App: app, DeviceFingerprintID: fp.FingerprintID}
	if err := s.ephemeral.Set(ctx, ssoKey(token), grant, domain.SSOTokenTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("store sso grant: %w", err)
	}

	logger.InfoContext(ctx, "sso.created", "user_id", userID, "app", app)
	return token, nil
}

// Validate redeems an SSO token into a session. Single use: the grant is
// deleted before the session exists, so of two concurrent redemptions at most
// one succeeds past the read.
func (s *SSOService) Validate(ctx context.Context, ssoToken string) (*SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "sso.validate")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	var grant SSOGrant
	if err := s.ephemeral.Get(ctx, ssoKey(ssoToken), &grant); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "sso_token")))
			span.SetStatus(codes.Error, "sso token not found")
			return nil, fmt.Errorf("sso token: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get sso grant: %w", err)
	}

	if err := s.ephemeral.Delete(ctx, ssoKey(ssoToken)); err != nil {
		logger.WarnContext(ctx, "failed to delete sso grant", "error", err)
	}

	session, err := s.sessions.Create(ctx, CreateSessionParams{
		UserID:              grant.UserID,
		DeviceFingerprintID: grant.DeviceFingerprintID,
		App:                 grant.App,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "sso.validated", "user_id", grant.UserID, "app", grant.App)
	return session, nil
}
