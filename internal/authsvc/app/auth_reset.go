package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/observability"
	"github.com/decode-platform/auth-service/internal/password"
)

// InitiatePasswordReset resolves the account and emails a short-lived reset
// code. The code is the only thing sent to the user.
func (s *AuthService) InitiatePasswordReset(ctx context.Context, emailOrUsername string) error {
	ctx, span := tracer.Start(ctx, "auth.password_reset_initiate")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	user, err := s.users.GetByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			span.SetStatus(codes.Error, "unknown account")
			return fmt.Errorf("password reset: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("lookup user: %w", err)
	}

	code, err := domain.GenerateVerificationCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("generate reset code: %w", err)
	}
	record := ChangePasswordCode{UserID: user.UserID, VerificationCode: code}
	if err := s.ephemeral.Set(ctx, changePasswordKey(code), record, domain.ChangePasswordCodeTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("store reset code: %w", err)
	}

	s.publishEmailInBackground(ctx, EmailRequest{
		Type: domain.EmailTypeForgotPassword,
		Data: EmailData{Email: user.Email, Code: code, Username: user.Username},
	})

	emailRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", domain.EmailTypeForgotPassword)))
	logger.InfoContext(ctx, "auth.password_reset_initiated", "user_id", user.UserID)
	return nil
}

// VerifyPasswordResetCode checks that a reset code is still live without
// consuming it. The serializing delete happens in ChangePassword.
func (s *AuthService) VerifyPasswordResetCode(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "auth.password_reset_verify")
	defer span.End()

	var record ChangePasswordCode
	if err := s.ephemeral.Get(ctx, changePasswordKey(code), &record); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "reset_code")))
			span.SetStatus(codes.Error, "reset code not found")
			return fmt.Errorf("reset code: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("get reset code: %w", err)
	}
	return nil
}

// ChangePassword redeems a reset code and replaces the account password. The
// code delete after the directory update is the serializing step between
// concurrent redemptions.
func (s *AuthService) ChangePassword(ctx context.Context, code, newPassword string) error {
	ctx, span := tracer.Start(ctx, "auth.password_change")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	var record ChangePasswordCode
	if err := s.ephemeral.Get(ctx, changePasswordKey(code), &record); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "reset_code")))
			span.SetStatus(codes.Error, "reset code not found")
			return fmt.Errorf("reset code: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("get reset code: %w", err)
	}

	if strength := password.Evaluate(newPassword); !strength.OK {
		span.SetStatus(codes.Error, "weak password")
		return fmt.Errorf("%s: %w", strings.Join(strength.Feedback, "; "), domain.ErrWeakPassword)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("lookup user: %w", err)
	}

	// The old plaintext is gone, so dissimilarity is checked against the
	// account identifiers instead.
	localPart, _, _ := strings.Cut(user.Email, "@")
	for _, identifier := range []string{user.Username, localPart} {
		if identifier != "" && password.TooSimilar(newPassword, identifier) {
			span.SetStatus(codes.Error, "password too similar")
			return fmt.Errorf("password change: %w", domain.ErrPasswordTooSimilar)
		}
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.ChangePassword(ctx, record.UserID, hash); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("change password: %w", err)
	}

	if err := s.ephemeral.Delete(ctx, changePasswordKey(code)); err != nil {
		logger.WarnContext(ctx, "failed to delete reset code", "error", err)
	}

	logger.InfoContext(ctx, "auth.password_changed", "user_id", record.UserID)
	return nil
}
