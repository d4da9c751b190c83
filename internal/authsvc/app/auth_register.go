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

// RegisterParams are the inputs for starting a registration.
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// Register validates and stashes a pending registration, then emails a
// verification code. No user exists in the directory until the code is
// redeemed.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) error {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	if strength := password.Evaluate(params.Password); !strength.OK {
		span.SetStatus(codes.Error, "weak password")
		return fmt.Errorf("%s: %w", strings.Join(strength.Feedback, "; "), domain.ErrWeakPassword)
	}

	// Fail fast on both identifiers before any state is written.
	for _, identifier := range []string{params.Email, params.Username} {
		exists, err := s.users.CheckExists(ctx, identifier)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("check existing user: %w", err)
		}
		if exists {
			span.SetStatus(codes.Error, "identifier taken")
			return fmt.Errorf("register: %w", domain.ErrExistingUser)
		}
	}

	hash, err := password.Hash(params.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("hash password: %w", err)
	}

	info := RegisterInfo{
		Username:       params.Username,
		Email:          params.Email,
		PasswordHashed: hash,
	}
	if err := s.ephemeral.Set(ctx, registerInfoKey(params.Email), info, domain.RegisterInfoTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("store pending registration: %w", err)
	}

	code, err := domain.GenerateVerificationCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("generate verification code: %w", err)
	}
	verification := EmailVerification{Email: params.Email, Code: code}
	if err := s.ephemeral.Set(ctx, emailVerificationKey(code), verification, domain.EmailVerificationTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("store verification code: %w", err)
	}

	s.publishEmailInBackground(ctx, EmailRequest{
		Type: domain.EmailTypeCreateAccount,
		Data: EmailData{Email: params.Email, Code: code, Username: params.Username},
	})

	emailRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", domain.EmailTypeCreateAccount)))
	logger.InfoContext(ctx, "auth.register_pending", "username", params.Username)
	return nil
}

// VerifyEmailRegister redeems a registration code, creating the user in the
// directory and emitting the welcome and user-created events.
func (s *AuthService) VerifyEmailRegister(ctx context.Context, code string) (*UserRecord, error) {
	ctx, span := tracer.Start(ctx, "auth.verify_email_register")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	var verification EmailVerification
	if err := s.ephemeral.Get(ctx, emailVerificationKey(code), &verification); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "register_code")))
			span.SetStatus(codes.Error, "verification code not found")
			return nil, fmt.Errorf("verification code: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get verification code: %w", err)
	}

	var info RegisterInfo
	if err := s.ephemeral.Get(ctx, registerInfoKey(verification.Email), &info); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The hour-long registration window closed before the code arrived.
			span.SetStatus(codes.Error, "pending registration not found")
			return nil, fmt.Errorf("verification code: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get pending registration: %w", err)
	}

	user, err := s.users.Create(ctx, NewUser{
		Username:       info.Username,
		Email:          info.Email,
		PasswordHashed: info.PasswordHashed,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			span.SetStatus(codes.Error, "identifier taken")
			return nil, fmt.Errorf("create user: %w", domain.ErrExistingUser)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publishEmailInBackground(ctx, EmailRequest{
		Type: domain.EmailTypeWelcomeMessage,
		Data: EmailData{Email: user.Email, Username: user.Username},
	})
	s.publishUserCreatedInBackground(ctx, UserCreatedEvent{
		UserID:   user.UserID,
		Email:    user.Email,
		Username: user.Username,
	})

	if err := s.ephemeral.Delete(ctx, emailVerificationKey(code), registerInfoKey(verification.Email)); err != nil {
		logger.WarnContext(ctx, "failed to delete registration records", "error", err)
	}

	registrationsTotal.Add(ctx, 1)
	logger.InfoContext(ctx, "auth.registered", "user_id", user.UserID, "username", user.Username)
	return user, nil
}

func (s *AuthService) publishEmailInBackground(ctx context.Context, req EmailRequest) {
	bgCtx := context.WithoutCancel(ctx)
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.publisher.PublishEmailRequest(bgCtx, req); err != nil {
			s.logger.ErrorContext(bgCtx, "failed to publish email request", "error", err, "type", req.Type)
		}
	}()
}

func (s *AuthService) publishUserCreatedInBackground(ctx context.Context, evt UserCreatedEvent) {
	bgCtx := context.WithoutCancel(ctx)
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.publisher.PublishUserCreated(bgCtx, evt); err != nil {
			s.logger.ErrorContext(bgCtx, "failed to publish user created event", "error", err, "user_id", evt.UserID)
		}
	}()
}
