package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/config"
	"github.com/decode-platform/auth-service/internal/domain"
)

type stubSecretsManager struct {
	getSecretValueFn func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (s *stubSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return s.getSecretValueFn(ctx, params, optFns...)
}

var _ smClient = (*stubSecretsManager)(nil)

type stubSSM struct {
	getParametersByPathFn func(ctx context.Context, params *awsssm.GetParametersByPathInput, optFns ...func(*awsssm.Options)) (*awsssm.GetParametersByPathOutput, error)
}

func (s *stubSSM) GetParametersByPath(ctx context.Context, params *awsssm.GetParametersByPathInput, optFns ...func(*awsssm.Options)) (*awsssm.GetParametersByPathOutput, error) {
	return s.getParametersByPathFn(ctx, params, optFns...)
}

var _ ssmClient = (*stubSSM)(nil)

func TestLoadSecretsFromSecretsManager(t *testing.T) {
	t.Run("fills empty fields, environment values win", func(t *testing.T) {
		client := &stubSecretsManager{
			getSecretValueFn: func(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				assert.Equal(t, "auth-service-secrets", *params.SecretId)
				return &secretsmanager.GetSecretValueOutput{
					SecretString: aws.String(`{
						"access_secret": "sm-access",
						"session_secret": "sm-session",
						"service_secret": "sm-service",
						"wallet_secret": "sm-wallet",
						"otp_passphrase": "sm-passphrase"
					}`),
				}, nil
			},
		}

		cfg := &config.Config{}
		cfg.Tokens.AccessSecret = domain.SecretString("env-access")

		err := LoadSecretsFromSecretsManager(context.Background(), client, "auth-service-secrets", cfg)
		require.NoError(t, err)

		assert.Equal(t, "env-access", cfg.Tokens.AccessSecret.Expose())
		assert.Equal(t, "sm-session", cfg.Tokens.SessionSecret.Expose())
		assert.Equal(t, "sm-service", cfg.Tokens.ServiceSecret.Expose())
		assert.Equal(t, "sm-wallet", cfg.Tokens.WalletSecret.Expose())
		assert.Equal(t, "sm-passphrase", cfg.OTP.Passphrase.Expose())
	})

	t.Run("missing secret string - errors", func(t *testing.T) {
		client := &stubSecretsManager{
			getSecretValueFn: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				return &secretsmanager.GetSecretValueOutput{}, nil
			},
		}

		err := LoadSecretsFromSecretsManager(context.Background(), client, "auth-service-secrets", &config.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no secret string")
	})

	t.Run("fetch failure - wraps with secret id", func(t *testing.T) {
		client := &stubSecretsManager{
			getSecretValueFn: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				return nil, errors.New("access denied")
			},
		}

		err := LoadSecretsFromSecretsManager(context.Background(), client, "auth-service-secrets", &config.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `secrets: fetch "auth-service-secrets": access denied`)
	})
}

func TestLoadSecretsFromSSM(t *testing.T) {
	t.Run("applies parameters relative to the prefix", func(t *testing.T) {
		client := &stubSSM{
			getParametersByPathFn: func(_ context.Context, params *awsssm.GetParametersByPathInput, _ ...func(*awsssm.Options)) (*awsssm.GetParametersByPathOutput, error) {
				assert.Equal(t, "/decode/auth/", *params.Path)
				require.NotNil(t, params.WithDecryption)
				assert.True(t, *params.WithDecryption)
				return &awsssm.GetParametersByPathOutput{
					Parameters: []ssmtypes.Parameter{
						{Name: aws.String("/decode/auth/access_secret"), Value: aws.String("ssm-access")},
						{Name: aws.String("/decode/auth/wallet_secret"), Value: aws.String("ssm-wallet")},
					},
				}, nil
			},
		}

		cfg := &config.Config{}
		err := LoadSecretsFromSSM(context.Background(), client, "/decode/auth", cfg)
		require.NoError(t, err)

		assert.Equal(t, "ssm-access", cfg.Tokens.AccessSecret.Expose())
		assert.Equal(t, "ssm-wallet", cfg.Tokens.WalletSecret.Expose())
		assert.True(t, cfg.Tokens.SessionSecret.IsEmpty())
	})

	t.Run("fetch failure - wraps with prefix", func(t *testing.T) {
		client := &stubSSM{
			getParametersByPathFn: func(_ context.Context, _ *awsssm.GetParametersByPathInput, _ ...func(*awsssm.Options)) (*awsssm.GetParametersByPathOutput, error) {
				return nil, errors.New("access denied")
			},
		}

		err := LoadSecretsFromSSM(context.Background(), client, "/decode/auth", &config.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `secrets: fetch parameters under "/decode/auth/": access denied`)
	})
}
