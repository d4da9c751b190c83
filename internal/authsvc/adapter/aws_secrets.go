package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/decode-platform/auth-service/internal/config"
	"github.com/decode-platform/auth-service/internal/domain"
)

// smClient is a narrow, consumer-defined interface for Secrets Manager
// operations. The real *secretsmanager.Client satisfies it.
type smClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ssmClient is a narrow, consumer-defined interface for SSM Parameter Store
// operations. The real *ssm.Client satisfies it.
type ssmClient interface {
	GetParametersByPath(ctx context.Context, params *awsssm.GetParametersByPathInput, optFns ...func(*awsssm.Options)) (*awsssm.GetParametersByPathOutput, error)
}

// secretBlob is the JSON shape of the Secrets Manager secret holding all
// signing secrets for this service.
type secretBlob struct {
	AccessSecret  string `json:"access_secret"`
	SessionSecret string `json:"session_secret"`
	ServiceSecret string `json:"service_secret"`
	WalletSecret  string `json:"wallet_secret"`
	OTPPassphrase string `json:"otp_passphrase"`
}

// LoadSecretsFromSecretsManager fetches the service's secret blob and applies
// it onto cfg. Environment-provided values win: only empty fields are filled.
func LoadSecretsFromSecretsManager(ctx context.Context, client smClient, secretID string, cfg *config.Config) error {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return fmt.Errorf("secrets: fetch %q: %w", secretID, err)
	}
	if out.SecretString == nil {
		return fmt.Errorf("secrets: %q has no secret string", secretID)
	}

	var blob secretBlob
	if err := json.Unmarshal([]byte(*out.SecretString), &blob); err != nil {
		return fmt.Errorf("secrets: decode %q: %w", secretID, err)
	}

	applySecrets(cfg, map[string]string{
		"access_secret":  blob.AccessSecret,
		"session_secret": blob.SessionSecret,
		"service_secret": blob.ServiceSecret,
		"wallet_secret":  blob.WalletSecret,
		"otp_passphrase": blob.OTPPassphrase,
	})
	return nil
}

// LoadSecretsFromSSM fetches all parameters under prefix and applies them onto
// cfg. Each parameter's name relative to the prefix selects the config field,
// e.g. {prefix}/access_secret. Environment-provided values win.
func LoadSecretsFromSSM(ctx context.Context, client ssmClient, prefix string, cfg *config.Config) error {
	prefix = strings.TrimSuffix(prefix, "/") + "/"

	out, err := client.GetParametersByPath(ctx, &awsssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("secrets: fetch parameters under %q: %w", prefix, err)
	}

	values := make(map[string]string, len(out.Parameters))
	for _, param := range out.Parameters {
		if param.Name == nil || param.Value == nil {
			continue
		}
		values[strings.TrimPrefix(*param.Name, prefix)] = *param.Value
	}

	applySecrets(cfg, values)
	return nil
}

// applySecrets fills empty secret fields on cfg from the named values.
func applySecrets(cfg *config.Config, values map[string]string) {
	fill := func(dst *domain.SecretString, key string) {
		if dst.IsEmpty() && values[key] != "" {
			*dst = domain.SecretString(values[key])
		}
	}
	fill(&cfg.Tokens.AccessSecret, "access_secret")
	fill(&cfg.Tokens.SessionSecret, "session_secret")
	fill(&cfg.Tokens.ServiceSecret, "service_secret")
	fill(&cfg.Tokens.WalletSecret, "wallet_secret")
	fill(&cfg.OTP.Passphrase, "otp_passphrase")
}
