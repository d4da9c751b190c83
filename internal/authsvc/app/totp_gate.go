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
)

// The two-factor gate. No session may exist until the TOTP check passes when
// the user has it enabled; the opaque tokens minted here are the only legal
// carriers of "password and device already verified" state across requests.

// checkAndInitLogin completes a login for which credentials and device trust
// have already been established. With TOTP enabled it parks the pending login
// behind an opaque token; otherwise it creates the session directly.
func (s *AuthService) checkAndInitLogin(ctx context.Context, pending OtpLoginSession) (*LoginResult, error) {
	enabled, err := s.secondFactor.Enabled(ctx, pending.UserID)
	if err != nil {
		return nil, err
	}

	if !enabled {
		session, err := s.sessions.Create(ctx, CreateSessionParams{
			UserID:              pending.UserID,
			DeviceFingerprintID: pending.DeviceFingerprintID,
			App:                 pending.App,
		})
		if err != nil {
			return nil, err
		}
		s.updateLastLoginInBackground(ctx, pending.UserID)
		return &LoginResult{Status: LoginSessionCreated, Session: session}, nil
	}

	token, err := domain.GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate login session token: %w", err)
	}
	if err := s.ephemeral.Set(ctx, otpLoginKey(token), pending, domain.OTPLoginSessionTTL); err != nil {
		return nil, fmt.Errorf("store login session: %w", err)
	}

	otpChallengesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", "login")))
	return &LoginResult{Status: LoginOtpRequired, LoginSessionToken: token}, nil
}

// LoginVerifyOTP redeems a login-session token with a TOTP code and creates
// the session. A wrong code leaves the token in place for retry inside its
// TTL; a missing or expired token is domain.ErrInvalidCode.
func (s *AuthService) LoginVerifyOTP(ctx context.Context, loginSessionToken, otpCode string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.login_verify_otp")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	var pending OtpLoginSession
	if err := s.ephemeral.Get(ctx, otpLoginKey(loginSessionToken), &pending); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "login_session_token")))
			span.SetStatus(codes.Error, "login session not found")
			return nil, fmt.Errorf("login session token: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get login session: %w", err)
	}

	if err := s.secondFactor.Verify(ctx, pending.UserID, otpCode); err != nil {
		span.SetStatus(codes.Error, "otp verification failed")
		return nil, err
	}

	if err := s.ephemeral.Delete(ctx, otpLoginKey(loginSessionToken)); err != nil {
		logger.WarnContext(ctx, "failed to delete login session", "error", err)
	}

	session, err := s.sessions.Create(ctx, CreateSessionParams{
		UserID:              pending.UserID,
		DeviceFingerprintID: pending.DeviceFingerprintID,
		App:                 pending.App,
	})
	if err != nil {
		return nil, err
	}
	s.updateLastLoginInBackground(ctx, pending.UserID)

	logger.InfoContext(ctx, "auth.login_otp_verified", "user_id", pending.UserID)
	return &LoginResult{Status: LoginSessionCreated, Session: session}, nil
}

// checkAndInitVerifyFingerprint parks the trust-this-device decision behind a
// TOTP challenge when the user has one enabled. Without TOTP the email
// challenge already sent is the only gate, and the caller reports that the
// device needs verification.
func (s *AuthService) checkAndInitVerifyFingerprint(ctx context.Context, userID, fingerprintID string) (*LoginResult, error) {
	enabled, err := s.secondFactor.Enabled(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return &LoginResult{Status: LoginDeviceVerificationRequired}, nil
	}

	token, err := domain.GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate fingerprint session token: %w", err)
	}
	pending := OtpFingerprintSession{UserID: userID, DeviceFingerprintID: fingerprintID}
	if err := s.ephemeral.Set(ctx, otpFingerprintKey(token), pending, domain.OTPFingerprintSessionTTL); err != nil {
		return nil, fmt.Errorf("store fingerprint session: %w", err)
	}

	otpChallengesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", "verify_fingerprint")))
	return &LoginResult{Status: LoginOtpRequired, LoginSessionToken: token}, nil
}

// FingerprintTrustVerifyOTP redeems a fingerprint-session token with a TOTP
// code: the device is trusted and a session created in one step.
func (s *AuthService) FingerprintTrustVerifyOTP(ctx context.Context, fingerprintSessionToken, otpCode string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.fingerprint_trust_verify_otp")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	var pending OtpFingerprintSession
	if err := s.ephemeral.Get(ctx, otpFingerprintKey(fingerprintSessionToken), &pending); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "fingerprint_session_token")))
			span.SetStatus(codes.Error, "fingerprint session not found")
			return nil, fmt.Errorf("fingerprint session token: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get fingerprint session: %w", err)
	}

	if err := s.secondFactor.Verify(ctx, pending.UserID, otpCode); err != nil {
		span.SetStatus(codes.Error, "otp verification failed")
		return nil, err
	}

	if err := s.ephemeral.Delete(ctx, otpFingerprintKey(fingerprintSessionToken)); err != nil {
		logger.WarnContext(ctx, "failed to delete fingerprint session", "error", err)
	}

	fp, err := s.fingerprints.TrustByID(ctx, pending.UserID, pending.DeviceFingerprintID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, CreateSessionParams{
		UserID:              pending.UserID,
		DeviceFingerprintID: fp.FingerprintID,
		App:                 domain.DefaultSessionApp,
	})
	if err != nil {
		return nil, err
	}
	s.updateLastLoginInBackground(ctx, pending.UserID)

	logger.InfoContext(ctx, "auth.fingerprint_trust_otp_verified",
		"user_id", pending.UserID,
		"fingerprint_id", fp.FingerprintID,
	)
	return &LoginResult{Status: LoginSessionCreated, Session: session}, nil
}
