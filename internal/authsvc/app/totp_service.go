package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/observability"
	"github.com/decode-platform/auth-service/internal/secretbox"
)

// otpCodePattern guards ValidateCustom from non-numeric input before any
// crypto work happens.
var otpCodePattern = regexp.MustCompile(`^\d{6}$`)

// totpOpts pins the verification parameters to what authenticator apps
// produce by default. One period of clock skew is tolerated either way.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTPSetup is the provisioning material returned once at setup time. The
// secret never leaves the service again after this response.
type TOTPSetup struct {
	Secret     string
	OtpauthURL string
}

// TOTPStatus reports whether a user has TOTP configured and enabled.
type TOTPStatus struct {
	Configured bool
	Enabled    bool
}

// TOTPServiceConfig holds the dependencies for TOTPService.
type TOTPServiceConfig struct {
	Configs OtpConfigStore
	Box     *secretbox.Box
	Issuer  string
	Clock   domain.Clock
	Logger  *slog.Logger
}

// TOTPService owns the second factor: per-user secret provisioning, the
// enable handshake, and code verification. Secrets are stored sealed and only
// opened for the duration of a verification.
type TOTPService struct {
	configs OtpConfigStore
	box     *secretbox.Box
	issuer  string
	clock   domain.Clock
	logger  *slog.Logger
}

// NewTOTPService creates a TOTPService with the given dependencies.
func NewTOTPService(cfg TOTPServiceConfig) *TOTPService {
	return &TOTPService{
		configs: cfg.Configs,
		box:     cfg.Box,
		issuer:  cfg.Issuer,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
	}
}

// Setup generates a fresh TOTP secret for the user, stores it sealed and
// disabled, and returns the provisioning material. A user who already has a
// config gets domain.ErrOTPAlreadySetup; setup is not a reset path.
func (s *TOTPService) Setup(ctx context.Context, userID, accountName string) (*TOTPSetup, error) {
	ctx, span := tracer.Start(ctx, "totp.setup")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	if _, err := s.configs.Get(ctx, userID); err == nil {
		span.SetStatus(codes.Error, "otp already configured")
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrOTPAlreadySetup)
	} else if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get otp config: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		SecretSize:  32,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	sealed, err := s.box.Seal([]byte(key.Secret()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("seal totp secret: %w", err)
	}

	now := domain.NowRFC3339(s.clock)
	record := OtpConfigRecord{
		UserID:       userID,
		SecretSealed: sealed,
		Enabled:      false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.configs.Create(ctx, record); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Concurrent setup lost the race; same answer as the precheck.
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrOTPAlreadySetup)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("store otp config: %w", err)
	}

	logger.InfoContext(ctx, "totp.setup", "user_id", userID)
	return &TOTPSetup{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
	}, nil
}

// Enable turns the second factor on after the user proves possession of the
// secret with a valid code. Enabling an already-enabled config fails so the
// handshake stays one-shot.
func (s *TOTPService) Enable(ctx context.Context, userID, code string) error {
	ctx, span := tracer.Start(ctx, "totp.enable")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	record, err := s.getConfig(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "otp config lookup failed")
		return err
	}
	if record.Enabled {
		span.SetStatus(codes.Error, "otp already enabled")
		return fmt.Errorf("user %s: %w", userID, domain.ErrOTPAlreadySetup)
	}

	if err := s.validateCode(ctx, record, code); err != nil {
		span.SetStatus(codes.Error, "invalid otp code")
		return err
	}

	if err := s.configs.SetEnabled(ctx, userID, true, domain.NowRFC3339(s.clock)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("enable otp: %w", err)
	}

	logger.InfoContext(ctx, "totp.enabled", "user_id", userID)
	return nil
}

// Disable turns the second factor off. Only an enabled config can be
// disabled; the sealed secret stays in place so re-enabling works against the
// same authenticator entry.
func (s *TOTPService) Disable(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "totp.disable")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	record, err := s.getConfig(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "otp config lookup failed")
		return err
	}
	if !record.Enabled {
		span.SetStatus(codes.Error, "otp not enabled")
		return fmt.Errorf("user %s: %w", userID, domain.ErrOTPNotEnabled)
	}

	if err := s.configs.SetEnabled(ctx, userID, false, domain.NowRFC3339(s.clock)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("disable otp: %w", err)
	}

	logger.InfoContext(ctx, "totp.disabled", "user_id", userID)
	return nil
}

// Verify checks a code against the user's enabled config. A configured but
// disabled second factor is domain.ErrOTPNotEnabled; the login gate treats
// that as "no second factor required" at a higher level.
func (s *TOTPService) Verify(ctx context.Context, userID, code string) error {
	ctx, span := tracer.Start(ctx, "totp.verify")
	defer span.End()

	record, err := s.getConfig(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "otp config lookup failed")
		return err
	}
	if !record.Enabled {
		span.SetStatus(codes.Error, "otp not enabled")
		return fmt.Errorf("user %s: %w", userID, domain.ErrOTPNotEnabled)
	}

	if err := s.validateCode(ctx, record, code); err != nil {
		span.SetStatus(codes.Error, "invalid otp code")
		return err
	}
	return nil
}

// Status reports the user's second-factor state without touching the secret.
func (s *TOTPService) Status(ctx context.Context, userID string) (*TOTPStatus, error) {
	ctx, span := tracer.Start(ctx, "totp.status")
	defer span.End()

	record, err := s.configs.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &TOTPStatus{}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get otp config: %w", err)
	}
	return &TOTPStatus{Configured: true, Enabled: record.Enabled}, nil
}

// Enabled reports whether the user must present a second factor at login.
func (s *TOTPService) Enabled(ctx context.Context, userID string) (bool, error) {
	status, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.Enabled, nil
}

func (s *TOTPService) getConfig(ctx context.Context, userID string) (*OtpConfigRecord, error) {
	record, err := s.configs.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrOTPNotConfigured)
		}
		return nil, fmt.Errorf("get otp config: %w", err)
	}
	return record, nil
}

func (s *TOTPService) validateCode(ctx context.Context, record *OtpConfigRecord, code string) error {
	if !otpCodePattern.MatchString(code) {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "otp_format")))
		return fmt.Errorf("otp code: %w", domain.ErrInvalidOTP)
	}

	secret, err := s.box.Open(record.SecretSealed)
	if err != nil {
		return fmt.Errorf("open totp secret: %w", err)
	}

	ok, err := totp.ValidateCustom(code, string(secret), s.clock.Now().UTC(), totpOpts)
	if err != nil {
		return fmt.Errorf("validate otp: %w", err)
	}
	if !ok {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "otp_mismatch")))
		return fmt.Errorf("otp code: %w", domain.ErrInvalidOTP)
	}
	return nil
}
