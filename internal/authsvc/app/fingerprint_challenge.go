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

// SendEmailChallenge stashes a short-lived verification code bound to
// (userID, fingerprintHash) and emits the verification email in the
// background.
func (s *FingerprintService) SendEmailChallenge(ctx context.Context, userID, fingerprintHash, email string) error {
	ctx, span := tracer.Start(ctx, "fingerprint.send_email_challenge")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	code, err := domain.GenerateVerificationCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("generate challenge code: %w", err)
	}

	challenge := FingerprintChallenge{
		UserID:          userID,
		FingerprintHash: fingerprintHash,
	}
	if err := s.ephemeral.Set(ctx, fingerprintChallengeKey(code), challenge, domain.FingerprintChallengeTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("store fingerprint challenge: %w", err)
	}

	// Email delivery is fire-and-forget; the challenge record is already
	// committed and the TTL bounds the code's lifetime either way.
	emailCtx := context.WithoutCancel(ctx)
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		req := EmailRequest{
			Type: domain.EmailTypeFingerprintVerify,
			Data: EmailData{Email: email, Code: code},
		}
		if pubErr := s.publisher.PublishEmailRequest(emailCtx, req); pubErr != nil {
			s.logger.ErrorContext(emailCtx, "failed to publish fingerprint challenge email",
				"error", pubErr, "user_id", userID)
		}
	}()

	emailRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", domain.EmailTypeFingerprintVerify)))
	logger.InfoContext(ctx, "fingerprint.challenge_sent", "user_id", userID)
	return nil
}

// VerifyEmailChallenge redeems a challenge code: the matching fingerprint is
// trusted and returned. The code is single use; a wrong or expired code is
// domain.ErrInvalidCode.
func (s *FingerprintService) VerifyEmailChallenge(ctx context.Context, code string) (*FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "fingerprint.verify_email_challenge")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	var challenge FingerprintChallenge
	if err := s.ephemeral.Get(ctx, fingerprintChallengeKey(code), &challenge); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "fingerprint_challenge_code")))
			span.SetStatus(codes.Error, "challenge code not found")
			return nil, fmt.Errorf("verification code: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get fingerprint challenge: %w", err)
	}

	if err := s.ephemeral.Delete(ctx, fingerprintChallengeKey(code)); err != nil {
		logger.WarnContext(ctx, "failed to delete fingerprint challenge", "error", err)
	}

	record, err := s.Trust(ctx, challenge.UserID, challenge.FingerprintHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The fingerprint vanished between challenge and redemption.
			span.SetStatus(codes.Error, "challenged fingerprint missing")
			return nil, fmt.Errorf("verification code: %w", domain.ErrInvalidCode)
		}
		return nil, err
	}

	logger.InfoContext(ctx, "fingerprint.challenge_verified",
		"user_id", challenge.UserID,
		"fingerprint_id", record.FingerprintID,
	)
	return record, nil
}
