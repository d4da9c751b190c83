package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/decode-platform/auth-service/internal/authsvc/adapter"
	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/authsvc/port"
	"github.com/decode-platform/auth-service/internal/config"
	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/dynamo"
	"github.com/decode-platform/auth-service/internal/redis"
	"github.com/decode-platform/auth-service/internal/secretbox"
	"github.com/decode-platform/auth-service/internal/token"
)

// fingerprintHolder breaks the construction cycle between the session
// service (wallet path needs EnsureTrusted) and the fingerprint service
// (revocation fan-out needs the session service). It is bound once during
// setup, before any request is served.
type fingerprintHolder struct {
	fp *app.FingerprintService
}

func (h *fingerprintHolder) EnsureTrusted(ctx context.Context, userID, fingerprintHash, browser, device string) (*app.FingerprintRecord, error) {
	return h.fp.EnsureTrusted(ctx, userID, fingerprintHash, browser, device)
}

// setup is the auth service composition root: infrastructure clients,
// adapters, token codecs, app services, and the HTTP router.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (http.Handler, func(context.Context) error, error) {
	// 1. Signing secrets. Outside "env" mode they come from AWS; values
	// already present in the environment win.
	if err := loadSecrets(ctx, cfg); err != nil {
		return nil, nil, fmt.Errorf("authsvc setup: %w", err)
	}

	// 2. Infrastructure clients.
	dynamoClient, err := dynamo.NewClient(ctx, dynamo.Config{
		Endpoint: cfg.DynamoDB.Endpoint,
		Region:   cfg.AWS.Region,
		Timeout:  cfg.DynamoDB.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("authsvc setup: create dynamo client: %w", err)
	}

	redisClient := redis.NewClient(redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	// 3. Adapters.
	clock := domain.RealClock{}
	sessionStore := adapter.NewSessionStore(dynamoClient.DB, cfg.DynamoDB.SessionsTable)
	sessionRotator := adapter.NewSessionRotator(dynamoClient.DB, cfg.DynamoDB.SessionsTable)
	fingerprintStore := adapter.NewFingerprintStore(dynamoClient.DB, cfg.DynamoDB.FingerprintsTable)
	otpStore := adapter.NewOtpConfigStore(dynamoClient.DB, cfg.DynamoDB.OtpsTable)
	ephemeral := adapter.NewEphemeralStore(redisClient.RDB)
	publisher := createPublisher(ctx, cfg, logger)

	// 4. Token codecs, one per family.
	accessCodec := token.NewAccessCodec(token.Config{
		Secret:   cfg.Tokens.AccessSecret,
		Issuer:   cfg.Tokens.AccessIssuer,
		Audience: cfg.Tokens.AccessAudience,
		Lifetime: cfg.Tokens.AccessTTL,
		Clock:    clock,
	})
	sessionCodec := token.NewSessionCodec(token.Config{
		Secret:   cfg.Tokens.SessionSecret,
		Issuer:   cfg.Tokens.SessionIssuer,
		Audience: cfg.Tokens.SessionAudience,
		Lifetime: cfg.Tokens.SessionTTL,
		Clock:    clock,
	})
	serviceMinter := token.NewServiceMinter(token.Config{
		Secret:   cfg.Tokens.ServiceSecret,
		Issuer:   cfg.Tokens.ServiceIssuer,
		Audience: cfg.Tokens.ServiceAudience,
		Lifetime: cfg.Tokens.ServiceTTL,
		Clock:    clock,
	}, domain.ServiceName)
	walletVerifier := token.NewServiceVerifier(token.Config{
		Secret:   cfg.Tokens.WalletSecret,
		Issuer:   cfg.Tokens.WalletIssuer,
		Audience: cfg.Tokens.WalletAudience,
		Clock:    clock,
	}, domain.WalletServiceName)

	users := adapter.NewUserDirectoryClient(
		cfg.UserDirectory.BaseURL,
		&http.Client{Timeout: cfg.UserDirectory.Timeout},
		serviceMinter,
	)

	box, err := secretbox.New(domain.SecretBytes(cfg.OTP.Passphrase.Expose()), "otp-secret")
	if err != nil {
		return nil, nil, fmt.Errorf("authsvc setup: create secret box: %w", err)
	}

	// 5. App services. The fingerprint/session cycle is bound through the
	// holder.
	holder := &fingerprintHolder{}
	sessions := app.NewSessionService(app.SessionServiceConfig{
		Sessions:      sessionStore,
		Rotator:       sessionRotator,
		Fingerprints:  holder,
		Ephemeral:     ephemeral,
		Publisher:     publisher,
		AccessTokens:  accessCodec,
		SessionTokens: sessionCodec,
		Clock:         clock,
		Logger:        logger,
	})
	fingerprints := app.NewFingerprintService(app.FingerprintServiceConfig{
		Fingerprints: fingerprintStore,
		Ephemeral:    ephemeral,
		Publisher:    publisher,
		Sessions:     sessions,
		Clock:        clock,
		Logger:       logger,
	})
	holder.fp = fingerprints

	totp := app.NewTOTPService(app.TOTPServiceConfig{
		Configs: otpStore,
		Box:     box,
		Issuer:  cfg.OTP.Issuer,
		Clock:   clock,
		Logger:  logger,
	})
	auth := app.NewAuthService(app.AuthServiceConfig{
		Users:        users,
		Ephemeral:    ephemeral,
		Publisher:    publisher,
		Sessions:     sessions,
		Fingerprints: fingerprints,
		SecondFactor: totp,
		Clock:        clock,
		Logger:       logger,
	})
	sso := app.NewSSOService(app.SSOServiceConfig{
		Ephemeral:    ephemeral,
		Fingerprints: fingerprints,
		Sessions:     sessions,
		Clock:        clock,
		Logger:       logger,
	})

	// 6. HTTP surface.
	router := port.NewRouter(port.RouterConfig{
		Auth:         auth,
		Sessions:     sessions,
		Fingerprints: fingerprints,
		TOTP:         totp,
		SSO:          sso,
		Wallet:       walletVerifier,
		Logger:       logger,
	})

	logger.InfoContext(ctx, "auth service initialized",
		slog.String("environment", cfg.Environment),
	)

	cleanup := func(_ context.Context) error {
		auth.Wait()
		fingerprints.Wait()
		sessions.Wait()
		return redisClient.Close()
	}

	return router.Routes(), cleanup, nil
}

// loadSecrets fills missing signing secrets from the configured AWS source.
func loadSecrets(ctx context.Context, cfg *config.Config) error {
	switch cfg.Secrets.Source {
	case "", "env":
		return nil
	case "secretsmanager":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		return adapter.LoadSecretsFromSecretsManager(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.Secrets.SecretID, cfg)
	case "ssm":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		return adapter.LoadSecretsFromSSM(ctx, ssm.NewFromConfig(awsCfg), cfg.Secrets.SSMPrefix, cfg)
	default:
		return fmt.Errorf("unknown secrets source %q", cfg.Secrets.Source)
	}
}

// createPublisher returns the appropriate event publisher for the
// environment. Local development logs events instead of publishing to SNS.
func createPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) app.EventPublisher {
	if cfg.IsLocal() {
		logger.Info("using log-only event publisher for local development")
		return adapter.NewLogEventPublisher(logger)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Warn("failed to load AWS config for SNS, using log-only publisher",
			slog.String("error", err.Error()))
		return adapter.NewLogEventPublisher(logger)
	}

	return adapter.NewSNSEventPublisher(sns.NewFromConfig(awsCfg), adapter.SNSEventPublisherConfig{
		EmailTopicARN:        cfg.SNS.EmailTopicARN,
		UserEventTopicARN:    cfg.SNS.UserEventTopicARN,
		NotificationTopicARN: cfg.SNS.NotificationTopicARN,
	})
}
