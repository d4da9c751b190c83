package domain_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/domain"
)

func TestSecretStringRedaction(t *testing.T) {
	secret := domain.SecretString("super-secret-jwt-key")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", secret))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", secret))
	assert.Equal(t, "super-secret-jwt-key", secret.Expose())
	assert.False(t, secret.IsEmpty())
	assert.True(t, domain.SecretString("").IsEmpty())
}

func TestSecretBytesRedaction(t *testing.T) {
	secret := domain.SecretBytes("0123456789abcdef0123456789abcdef")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), secret.Expose())
}

func TestSecretsNeverReachLogOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("issuing token",
		slog.Any("signing_key", domain.SecretString("hunter2")),
		slog.Any("otp_key", domain.SecretBytes("hunter2-bytes")),
	)

	out := buf.String()
	require.NotEmpty(t, out)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")
}
