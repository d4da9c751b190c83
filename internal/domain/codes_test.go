package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/domain"
)

const urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestGenerateVerificationCode(t *testing.T) {
	t.Run("has the documented length and alphabet", func(t *testing.T) {
		code, err := domain.GenerateVerificationCode()
		require.NoError(t, err)
		assert.Len(t, code, domain.VerificationCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(urlSafeAlphabet, r),
				"code %q contains character outside URL-safe alphabet", code)
		}
	})

	t.Run("successive codes differ", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			code, err := domain.GenerateVerificationCode()
			require.NoError(t, err)
			seen[code] = true
		}
		// 64^6 possibilities; 50 draws colliding would indicate broken randomness.
		assert.Greater(t, len(seen), 45)
	})
}

func TestGenerateOpaqueToken(t *testing.T) {
	token, err := domain.GenerateOpaqueToken()
	require.NoError(t, err)
	assert.Len(t, token, domain.OpaqueTokenLength)

	other, err := domain.GenerateOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateCode(t *testing.T) {
	t.Run("rejects non-positive length", func(t *testing.T) {
		_, err := domain.GenerateCode(0)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = domain.GenerateCode(-3)
		require.Error(t, err)
	})

	t.Run("honors requested length", func(t *testing.T) {
		code, err := domain.GenerateCode(12)
		require.NoError(t, err)
		assert.Len(t, code, 12)
	})
}
