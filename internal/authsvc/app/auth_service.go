package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/decode-platform/auth-service/internal/domain"
)

// SessionCreator is the slice of the session manager the orchestrator needs.
type SessionCreator interface {
	Create(ctx context.Context, params CreateSessionParams) (*SessionWithAccess, error)
}

// DeviceTrust is the slice of the fingerprint manager the orchestrator needs
// to drive the login and device-verification state machines.
type DeviceTrust interface {
	Check(ctx context.Context, userID, fingerprintHash string) (*FingerprintRecord, error)
	CreateUntrusted(ctx context.Context, userID, fingerprintHash, browser, device string) (*FingerprintRecord, error)
	SendEmailChallenge(ctx context.Context, userID, fingerprintHash, email string) error
	VerifyEmailChallenge(ctx context.Context, code string) (*FingerprintRecord, error)
	TrustByID(ctx context.Context, userID, fingerprintID string) (*FingerprintRecord, error)
}

// SecondFactor is the slice of the TOTP manager the orchestrator needs.
type SecondFactor interface {
	Enabled(ctx context.Context, userID string) (bool, error)
	Verify(ctx context.Context, userID, code string) error
}

// LoginStatus discriminates the three possible outcomes of a login attempt.
type LoginStatus string

const (
	// LoginSessionCreated means credentials and device were accepted and a
	// session was issued.
	LoginSessionCreated LoginStatus = "session_created"

	// LoginOtpRequired means credentials were accepted but a TOTP code must
	// be presented, carried by LoginSessionToken.
	LoginOtpRequired LoginStatus = "otp_required"

	// LoginDeviceVerificationRequired means the device is untrusted and an
	// email challenge was sent.
	LoginDeviceVerificationRequired LoginStatus = "device_verification_required"
)

// LoginResult is the outcome of a login attempt or of redeeming one of the
// two-factor challenge tokens. Exactly one of Session or LoginSessionToken is
// set, matching Status.
type LoginResult struct {
	Status            LoginStatus
	Session           *SessionWithAccess
	LoginSessionToken string
	User              *UserRecord
}

// AuthServiceConfig holds the dependencies for AuthService.
type AuthServiceConfig struct {
	Users        UserDirectory
	Ephemeral    EphemeralStore
	Publisher    EventPublisher
	Sessions     SessionCreator
	Fingerprints DeviceTrust
	SecondFactor SecondFactor
	Clock        domain.Clock
	Logger       *slog.Logger
}

// AuthService drives the login, registration, device-trust, and
// password-reset state machines. It owns no storage of its own; everything it
// persists lives in the ephemeral store under per-flow key prefixes.
type AuthService struct {
	users        UserDirectory
	ephemeral    EphemeralStore
	publisher    EventPublisher
	sessions     SessionCreator
	fingerprints DeviceTrust
	secondFactor SecondFactor
	clock        domain.Clock
	logger       *slog.Logger
	bgWG         sync.WaitGroup // owns background goroutines (emails, events, last-login)
}

// NewAuthService creates an AuthService with the given dependencies.
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		users:        cfg.Users,
		ephemeral:    cfg.Ephemeral,
		publisher:    cfg.Publisher,
		sessions:     cfg.Sessions,
		fingerprints: cfg.Fingerprints,
		secondFactor: cfg.SecondFactor,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
}

// Wait blocks until all background goroutines owned by this service complete.
func (s *AuthService) Wait() {
	s.bgWG.Wait()
}

// UserInfo returns the directory profile for an authenticated user.
func (s *AuthService) UserInfo(ctx context.Context, userID string) (*UserRecord, error) {
	ctx, span := tracer.Start(ctx, "auth.user_info")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// updateLastLoginInBackground records a successful login without blocking the
// response. A failure only loses bookkeeping.
func (s *AuthService) updateLastLoginInBackground(ctx context.Context, userID string) {
	bgCtx := context.WithoutCancel(ctx)
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.users.UpdateLastLogin(bgCtx, userID); err != nil {
			s.logger.WarnContext(bgCtx, "failed to update last login", "error", err, "user_id", userID)
		}
	}()
}
