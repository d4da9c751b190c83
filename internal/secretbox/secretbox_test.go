package secretbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/secretbox"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := secretbox.New(domain.SecretBytes("service-passphrase"), "totp-secrets")
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	require.NotContains(t, sealed, "JBSWY3DPEHPK3PXP")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("JBSWY3DPEHPK3PXP"), opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	box, err := secretbox.New(domain.SecretBytes("service-passphrase"), "totp-secrets")
	require.NoError(t, err)

	first, err := box.Seal([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	second, err := box.Seal([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestOpenRejectsForeignValues(t *testing.T) {
	box, err := secretbox.New(domain.SecretBytes("service-passphrase"), "totp-secrets")
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	t.Run("wrong passphrase", func(t *testing.T) {
		other, err := secretbox.New(domain.SecretBytes("different-passphrase"), "totp-secrets")
		require.NoError(t, err)

		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong label", func(t *testing.T) {
		other, err := secretbox.New(domain.SecretBytes("service-passphrase"), "api-keys")
		require.NoError(t, err)

		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := sealed[:len(sealed)-4] + "AAAA"
		_, err := box.Open(tampered)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := box.Open("%%%not-base64%%%")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := box.Open("QUFBQQ==")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestNewRequiresPassphrase(t *testing.T) {
	_, err := secretbox.New(domain.SecretBytes(nil), "totp-secrets")
	assert.ErrorIs(t, err, domain.ErrConfigRequired)
}
