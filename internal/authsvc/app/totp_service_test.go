package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/domain"
)

// otpAt computes the code an authenticator app would show at the given time.
func otpAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// setupAndEnable provisions TOTP for userID and enables it with a current code.
func setupAndEnable(t *testing.T, h *testHarness, userID string) string {
	t.Helper()
	ctx := context.Background()
	setup, err := h.totp.Setup(ctx, userID, userID+"@x")
	require.NoError(t, err)
	require.NoError(t, h.totp.Enable(ctx, userID, otpAt(t, setup.Secret, h.clock.Now())))
	return setup.Secret
}

func TestTOTPSetupEnableVerify(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	setup, err := h.totp.Setup(ctx, "user-001", "alice@x")
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	assert.True(t, strings.HasPrefix(setup.OtpauthURL, "otpauth://totp/"))
	assert.Contains(t, setup.OtpauthURL, "Decode")

	// Stored sealed, never in the clear.
	record, err := h.otpStore.Get(ctx, "user-001")
	require.NoError(t, err)
	assert.False(t, record.Enabled)
	assert.NotContains(t, record.SecretSealed, setup.Secret)

	require.NoError(t, h.totp.Enable(ctx, "user-001", otpAt(t, setup.Secret, h.clock.Now())))

	status, err := h.totp.Status(ctx, "user-001")
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.True(t, status.Enabled)

	require.NoError(t, h.totp.Verify(ctx, "user-001", otpAt(t, setup.Secret, h.clock.Now())))
}

func TestTOTPSetupIsOneShot(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.totp.Setup(ctx, "user-001", "alice@x")
	require.NoError(t, err)

	_, err = h.totp.Setup(ctx, "user-001", "alice@x")
	require.ErrorIs(t, err, domain.ErrOTPAlreadySetup)
}

func TestTOTPEnableRequiresValidCode(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	setup, err := h.totp.Setup(ctx, "user-001", "alice@x")
	require.NoError(t, err)

	err = h.totp.Enable(ctx, "user-001", "000000")
	require.ErrorIs(t, err, domain.ErrInvalidOTP)

	status, err := h.totp.Status(ctx, "user-001")
	require.NoError(t, err)
	assert.False(t, status.Enabled)

	// A code from far outside the skew window is rejected too.
	err = h.totp.Enable(ctx, "user-001", otpAt(t, setup.Secret, h.clock.Now().Add(-5*time.Minute)))
	require.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestTOTPVerifyRejectsMalformedInput(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	setupAndEnable(t, h, "user-001")

	for _, code := range []string{"", "12345", "1234567", "12345a", "12 456"} {
		err := h.totp.Verify(ctx, "user-001", code)
		require.ErrorIs(t, err, domain.ErrInvalidOTP, "code %q", code)
	}
}

func TestTOTPVerifyToleratesOneStepOfSkew(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	secret := setupAndEnable(t, h, "user-001")

	require.NoError(t, h.totp.Verify(ctx, "user-001", otpAt(t, secret, h.clock.Now().Add(-30*time.Second))))
	require.NoError(t, h.totp.Verify(ctx, "user-001", otpAt(t, secret, h.clock.Now().Add(30*time.Second))))

	err := h.totp.Verify(ctx, "user-001", otpAt(t, secret, h.clock.Now().Add(-2*time.Minute)))
	require.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestTOTPVerifyRequiresState(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	err := h.totp.Verify(ctx, "user-001", "123456")
	require.ErrorIs(t, err, domain.ErrOTPNotConfigured)

	_, err = h.totp.Setup(ctx, "user-001", "alice@x")
	require.NoError(t, err)

	err = h.totp.Verify(ctx, "user-001", "123456")
	require.ErrorIs(t, err, domain.ErrOTPNotEnabled)
}

func TestTOTPDisableKeepsSecret(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	secret := setupAndEnable(t, h, "user-001")

	require.NoError(t, h.totp.Disable(ctx, "user-001"))

	enabled, err := h.totp.Enabled(ctx, "user-001")
	require.NoError(t, err)
	assert.False(t, enabled)

	// Re-enable with the same authenticator, no re-provisioning.
	require.NoError(t, h.totp.Enable(ctx, "user-001", otpAt(t, secret, h.clock.Now())))
	require.NoError(t, h.totp.Verify(ctx, "user-001", otpAt(t, secret, h.clock.Now())))
}

func TestTOTPDisableRequiresEnabled(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	err := h.totp.Disable(ctx, "user-001")
	require.ErrorIs(t, err, domain.ErrOTPNotConfigured)

	setup, err := h.totp.Setup(ctx, "user-001", "alice@x")
	require.NoError(t, err)

	// Configured but never enabled is not a disableable state.
	err = h.totp.Disable(ctx, "user-001")
	require.ErrorIs(t, err, domain.ErrOTPNotEnabled)

	require.NoError(t, h.totp.Enable(ctx, "user-001", otpAt(t, setup.Secret, h.clock.Now())))
	require.NoError(t, h.totp.Disable(ctx, "user-001"))

	// A second disable needs a fresh enable first.
	err = h.totp.Disable(ctx, "user-001")
	require.ErrorIs(t, err, domain.ErrOTPNotEnabled)
}
