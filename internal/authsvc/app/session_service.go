package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/observability"
	"github.com/decode-platform/auth-service/internal/token"
)

// FingerprintProvisioner is the slice of the fingerprint manager the session
// service needs for the wallet-session path.
type FingerprintProvisioner interface {
	EnsureTrusted(ctx context.Context, userID, fingerprintHash, browser, device string) (*FingerprintRecord, error)
}

// CreateSessionParams are the inputs for creating a session. The caller must
// have already authenticated the principal.
type CreateSessionParams struct {
	UserID              string
	DeviceFingerprintID string
	App                 string
}

// SessionWithAccess is a freshly created or rotated session together with its
// bound access token.
type SessionWithAccess struct {
	SessionID        string
	SessionToken     string
	AccessToken      string
	SessionExpiresAt time.Time
	AccessExpiresAt  time.Time
}

// Identity is the authenticated principal resolved from a token.
type Identity struct {
	UserID       string
	SessionID    string
	SessionToken string
}

// SessionServiceConfig holds the dependencies for SessionService.
type SessionServiceConfig struct {
	Sessions      SessionStore
	Rotator       SessionRotator
	Fingerprints  FingerprintProvisioner
	Ephemeral     EphemeralStore
	Publisher     EventPublisher
	AccessTokens  *token.AccessCodec
	SessionTokens *token.SessionCodec
	Clock         domain.Clock
	Logger        *slog.Logger
}

// SessionService owns the session lifecycle: creation, rotation, revocation
// fan-out, and token validation.
type SessionService struct {
	sessions      SessionStore
	rotator       SessionRotator
	fingerprints  FingerprintProvisioner
	ephemeral     EphemeralStore
	publisher     EventPublisher
	accessTokens  *token.AccessCodec
	sessionTokens *token.SessionCodec
	clock         domain.Clock
	logger        *slog.Logger
	bgWG          sync.WaitGroup // owns background goroutines (notifications, touches)
}

// NewSessionService creates a SessionService with the given dependencies.
func NewSessionService(cfg SessionServiceConfig) *SessionService {
	return &SessionService{
		sessions:      cfg.Sessions,
		rotator:       cfg.Rotator,
		fingerprints:  cfg.Fingerprints,
		ephemeral:     cfg.Ephemeral,
		publisher:     cfg.Publisher,
		accessTokens:  cfg.AccessTokens,
		sessionTokens: cfg.SessionTokens,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
	}
}

// Wait blocks until all background goroutines owned by this service complete.
// The wiring layer invokes this during graceful shutdown.
func (s *SessionService) Wait() {
	s.bgWG.Wait()
}

// Create mints a session token, persists the session, and mints a bound
// access token. A notification event fires in the background.
func (s *SessionService) Create(ctx context.Context, params CreateSessionParams) (*SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "session.create")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	sessionToken, sessionExpiry, err := s.sessionTokens.Mint(params.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("mint session token: %w", err)
	}

	now := domain.NowRFC3339(s.clock)
	record := SessionRecord{
		SessionID:           domain.GenerateSessionID().String(),
		UserID:              params.UserID,
		DeviceFingerprintID: params.DeviceFingerprintID,
		SessionToken:        sessionToken,
		App:                 params.App,
		CreatedAt:           now,
		LastUsedAt:          now,
		ExpiresAt:           sessionExpiry.Format(time.RFC3339),
		IsActive:            true,
		TTL:                 sessionExpiry.Unix(),
	}

	if err := s.sessions.Create(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create session: %w", err)
	}

	accessToken, accessExpiry, err := s.accessTokens.Mint(params.UserID, sessionToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	// Background notification — detached from the request context so client
	// disconnects do not kill the in-flight publish.
	evtCtx := context.WithoutCancel(ctx)
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		evt := NotificationEvent{
			UserID:  params.UserID,
			Kind:    "session_created",
			Message: "New login to your account",
		}
		if pubErr := s.publisher.PublishNotification(evtCtx, evt); pubErr != nil {
			s.logger.ErrorContext(evtCtx, "failed to publish session notification",
				"error", pubErr, "user_id", params.UserID)
		}
	}()

	sessionsCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("app", params.App)))
	logger.InfoContext(ctx, "session.created",
		"user_id", params.UserID,
		"session_id", record.SessionID,
		"app", params.App,
	)

	return &SessionWithAccess{
		SessionID:        record.SessionID,
		SessionToken:     sessionToken,
		AccessToken:      accessToken,
		SessionExpiresAt: sessionExpiry,
		AccessExpiresAt:  accessExpiry,
	}, nil
}

// CreateWalletSession redeems a wallet pass token into a session bound to a
// trusted fingerprint, stamped with the wallet app label. The caller must
// already be service-authenticated; the user agent is checked here as a
// second gate.
func (s *SessionService) CreateWalletSession(ctx context.Context, walletPassToken, userAgent string) (*SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "session.create_wallet")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	if userAgent != domain.WalletUserAgent {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "wallet_user_agent")))
		span.SetStatus(codes.Error, "unexpected user agent")
		return nil, fmt.Errorf("unexpected caller: %w", domain.ErrForbidden)
	}

	var pass WalletPass
	if err := s.ephemeral.Get(ctx, walletPassKey(walletPassToken), &pass); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "wallet_pass")))
			span.SetStatus(codes.Error, "wallet pass not found")
			return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get wallet pass: %w", err)
	}

	// Single use. A delete failure is not fatal; the TTL bounds the window.
	if err := s.ephemeral.Delete(ctx, walletPassKey(walletPassToken)); err != nil {
		logger.WarnContext(ctx, "failed to delete wallet pass", "error", err)
	}

	fp, err := s.fingerprints.EnsureTrusted(ctx, pass.UserID, pass.FingerprintHash, pass.Browser, pass.Device)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("ensure trusted fingerprint: %w", err)
	}

	result, err := s.Create(ctx, CreateSessionParams{
		UserID:              pass.UserID,
		DeviceFingerprintID: fp.FingerprintID,
		App:                 domain.WalletSessionApp,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "session.wallet_created", "user_id", pass.UserID)
	return result, nil
}
