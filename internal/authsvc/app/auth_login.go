package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/observability"
	"github.com/decode-platform/auth-service/internal/password"
)

// LoginParams are the inputs for a login attempt.
type LoginParams struct {
	EmailOrUsername string
	Password        string
	FingerprintHash string
	Browser         string
	Device          string
}

// Login drives the login state machine: credential check, device-trust check,
// then either a session, a TOTP challenge, or a device-verification email.
// Unknown user and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	user, err := s.users.GetWithPasswordByEmailOrUsername(ctx, params.EmailOrUsername)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unknown_user")))
			span.SetStatus(codes.Error, "unknown user")
			return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := password.Compare(user.PasswordHash, params.Password); err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "password")))
		span.SetStatus(codes.Error, "password mismatch")
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}

	fp, err := s.fingerprints.Check(ctx, user.UserID, params.FingerprintHash)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("check fingerprint: %w", err)
	}

	if fp != nil && fp.IsTrusted {
		result, err := s.checkAndInitLogin(ctx, OtpLoginSession{
			UserID:              user.UserID,
			DeviceFingerprintID: fp.FingerprintID,
			Browser:             params.Browser,
			Device:              params.Device,
			App:                 domain.DefaultSessionApp,
		})
		if err != nil {
			return nil, err
		}
		result.User = &user.UserRecord

		loginsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(result.Status))))
		logger.InfoContext(ctx, "auth.login", "user_id", user.UserID, "outcome", string(result.Status))
		return result, nil
	}

	// Untrusted or unknown device: register it, challenge by email, and let
	// the TOTP gate decide whether a second factor is also required.
	if fp == nil {
		fp, err = s.fingerprints.CreateUntrusted(ctx, user.UserID, params.FingerprintHash, params.Browser, params.Device)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("register fingerprint: %w", err)
		}
	}

	if err := s.fingerprints.SendEmailChallenge(ctx, user.UserID, params.FingerprintHash, user.Email); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("send device challenge: %w", err)
	}

	result, err := s.checkAndInitVerifyFingerprint(ctx, user.UserID, fp.FingerprintID)
	if err != nil {
		return nil, err
	}
	result.User = &user.UserRecord

	loginsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(result.Status))))
	logger.InfoContext(ctx, "auth.login_untrusted_device", "user_id", user.UserID, "outcome", string(result.Status))
	return result, nil
}

// VerifyDeviceChallenge redeems a device-verification email code. The
// fingerprint is trusted, then the TOTP gate decides whether a session can be
// minted yet: the email code proves mailbox control, not the second factor.
func (s *AuthService) VerifyDeviceChallenge(ctx context.Context, code string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.verify_device_challenge")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	fp, err := s.fingerprints.VerifyEmailChallenge(ctx, code)
	if err != nil {
		span.SetStatus(codes.Error, "device challenge failed")
		return nil, err
	}

	result, err := s.checkAndInitLogin(ctx, OtpLoginSession{
		UserID:              fp.UserID,
		DeviceFingerprintID: fp.FingerprintID,
		Browser:             fp.Browser,
		Device:              fp.Device,
		App:                 domain.DefaultSessionApp,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "auth.device_challenge_verified",
		"user_id", fp.UserID,
		"fingerprint_id", fp.FingerprintID,
		"outcome", string(result.Status),
	)
	return result, nil
}
