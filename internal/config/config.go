// Package config provides configuration loading using koanf.
// Precedence: environment variables → AWS secret sources → compiled defaults.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/decode-platform/auth-service/internal/domain"
)

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Service configuration
	Auth AuthConfig `koanf:"auth"`

	// Token signing families
	Tokens TokensConfig `koanf:"tokens"`

	// Infrastructure configurations
	DynamoDB DynamoDBConfig `koanf:"dynamodb"`
	Redis    RedisConfig    `koanf:"redis"`
	AWS      AWSConfig      `koanf:"aws"`
	SNS      SNSConfig      `koanf:"sns"`
	Secrets  SecretsConfig  `koanf:"secrets"`

	// Sibling services
	UserDirectory UserDirectoryConfig `koanf:"user_directory"`

	// Two-factor configuration
	OTP OTPConfig `koanf:"otp"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// AuthConfig holds the HTTP surface configuration.
type AuthConfig struct {
	HTTPPort int `koanf:"http_port"`
}

// TokensConfig holds the per-family token signing parameters. Secrets are
// SecretString so they never reach log output.
type TokensConfig struct {
	AccessSecret   domain.SecretString `koanf:"access_secret"`
	AccessIssuer   string              `koanf:"access_issuer"`
	AccessAudience string              `koanf:"access_audience"`

	SessionSecret   domain.SecretString `koanf:"session_secret"`
	SessionIssuer   string              `koanf:"session_issuer"`
	SessionAudience string              `koanf:"session_audience"`

	// ServiceSecret signs this service's outbound tokens toward the user
	// directory.
	ServiceSecret   domain.SecretString `koanf:"service_secret"`
	ServiceIssuer   string              `koanf:"service_issuer"`
	ServiceAudience string              `koanf:"service_audience"`

	// WalletSecret verifies inbound tokens from the wallet service.
	WalletSecret   domain.SecretString `koanf:"wallet_secret"`
	WalletIssuer   string              `koanf:"wallet_issuer"`
	WalletAudience string              `koanf:"wallet_audience"`

	// Per-family lifetimes. Defaults: access 1 day, session 30 days,
	// service 10 minutes.
	AccessTTL  time.Duration `koanf:"access_ttl"`
	SessionTTL time.Duration `koanf:"session_ttl"`
	ServiceTTL time.Duration `koanf:"service_ttl"`
}

// DynamoDBConfig holds DynamoDB configuration and table names.
type DynamoDBConfig struct {
	Endpoint string        `koanf:"endpoint"` // Empty for production (uses default AWS endpoint)
	Timeout  time.Duration `koanf:"timeout"`

	SessionsTable     string `koanf:"sessions_table"`
	FingerprintsTable string `koanf:"fingerprints_table"`
	OtpsTable         string `koanf:"otps_table"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string        `koanf:"addr"` // Required outside local
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// AWSConfig holds AWS SDK configuration.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // LocalStack endpoint for development
}

// SNSConfig holds the message bus topic ARNs.
type SNSConfig struct {
	EmailTopicARN        string `koanf:"email_topic_arn"`
	UserEventTopicARN    string `koanf:"user_event_topic_arn"`
	NotificationTopicARN string `koanf:"notification_topic_arn"`
}

// SecretsConfig selects where signing secrets come from when they are not set
// in the environment. Source is "env", "secretsmanager", or "ssm".
type SecretsConfig struct {
	Source    string `koanf:"source"`
	SecretID  string `koanf:"secret_id"`  // Secrets Manager secret holding a JSON blob
	SSMPrefix string `koanf:"ssm_prefix"` // Parameter Store path prefix
}

// UserDirectoryConfig holds the user-directory sibling connection.
type UserDirectoryConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// OTPConfig holds two-factor parameters. Passphrase encrypts stored TOTP
// secrets at rest.
type OTPConfig struct {
	Passphrase domain.SecretString `koanf:"passphrase"`
	Issuer     string              `koanf:"issuer"` // Shown in authenticator apps
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",

		Auth: AuthConfig{
			HTTPPort: 8084,
		},

		Tokens: TokensConfig{
			AccessIssuer:    "decode-auth",
			AccessAudience:  "decode-api",
			SessionIssuer:   "decode-auth-session",
			SessionAudience: "decode-auth",
			ServiceIssuer:   "decode-auth-svc",
			ServiceAudience: "decode-user",
			WalletIssuer:    "decode-wallet",
			WalletAudience:  "decode-auth",

			AccessTTL:  domain.AccessTokenLifetime,
			SessionTTL: domain.SessionLifetime,
			ServiceTTL: domain.ServiceTokenLifetime,
		},

		DynamoDB: DynamoDBConfig{
			Timeout:           domain.DynamoDBTimeout,
			SessionsTable:     "auth_sessions",
			FingerprintsTable: "device_fingerprints",
			OtpsTable:         "otp_configs",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			DB:      0,
			Timeout: domain.RedisTimeout,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Secrets: SecretsConfig{
			Source: "env",
		},
		UserDirectory: UserDirectoryConfig{
			BaseURL: "http://localhost:8085",
			Timeout: domain.UserDirectoryTimeout,
		},
		OTP: OTPConfig{
			Issuer: "Decode",
		},
	}
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. AWS secret sources (applied by the composition root after Load)
// 3. Compiled defaults (lowest)
//
// Required keys missing → startup failure. Optional keys missing → defaults.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	// Start with compiled defaults
	cfg := defaults()

	// Load environment variables
	// Prefix: none (full names like TOKENS__ACCESS_SECRET)
	// Delimiter: __ maps to . for nesting; single _ stays within a key
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Validate required fields
	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRequired checks that required configuration is present. Signing
// secrets are exempt when an AWS secret source will supply them.
func validateRequired(cfg *Config) error {
	// In local environment, most fields have sensible defaults
	if cfg.Environment == "local" {
		return nil
	}

	if cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr", domain.ErrConfigRequired)
	}
	if cfg.UserDirectory.BaseURL == "" {
		return fmt.Errorf("%w: user_directory.base_url", domain.ErrConfigRequired)
	}
	if cfg.SNS.EmailTopicARN == "" {
		return fmt.Errorf("%w: sns.email_topic_arn", domain.ErrConfigRequired)
	}

	if cfg.Secrets.Source == "env" {
		if cfg.Tokens.AccessSecret.IsEmpty() {
			return fmt.Errorf("%w: tokens.access_secret", domain.ErrConfigRequired)
		}
		if cfg.Tokens.SessionSecret.IsEmpty() {
			return fmt.Errorf("%w: tokens.session_secret", domain.ErrConfigRequired)
		}
		if cfg.Tokens.ServiceSecret.IsEmpty() {
			return fmt.Errorf("%w: tokens.service_secret", domain.ErrConfigRequired)
		}
		if cfg.Tokens.WalletSecret.IsEmpty() {
			return fmt.Errorf("%w: tokens.wallet_secret", domain.ErrConfigRequired)
		}
		if cfg.OTP.Passphrase.IsEmpty() {
			return fmt.Errorf("%w: otp.passphrase", domain.ErrConfigRequired)
		}
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
