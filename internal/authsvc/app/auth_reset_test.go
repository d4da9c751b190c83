package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/password"
)

const resetCodePrefix = "change_password_verification_code:"

func resetCode(t *testing.T, h *testHarness) string {
	t.Helper()
	keys := h.ephemeral.keysWithPrefix(resetCodePrefix)
	require.Len(t, keys, 1)
	return strings.TrimPrefix(keys[0], resetCodePrefix)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.seedUserWithPassword(t, "user-001", "a@x", "alice")

	var newHash string
	h.users.changePasswordFn = func(_ context.Context, userID, hash string) error {
		require.Equal(t, "user-001", userID)
		newHash = hash
		return nil
	}

	require.NoError(t, h.auth.InitiatePasswordReset(ctx, "alice"))

	h.wait()
	emails := h.publisher.emailsByType(domain.EmailTypeForgotPassword)
	require.Len(t, emails, 1)
	assert.Equal(t, "a@x", emails[0].Data.Email)

	code := resetCode(t, h)
	assert.Equal(t, emails[0].Data.Code, code)

	// Verify does not consume the code.
	require.NoError(t, h.auth.VerifyPasswordResetCode(ctx, code))
	require.NoError(t, h.auth.VerifyPasswordResetCode(ctx, code))

	const newPassword = "MyD0g$RexBarks"
	require.NoError(t, h.auth.ChangePassword(ctx, code, newPassword))
	require.NotEmpty(t, newHash)
	assert.NoError(t, password.Compare(newHash, newPassword))

	// Change is the serializing step: the code is dead afterwards.
	err := h.auth.VerifyPasswordResetCode(ctx, code)
	require.ErrorIs(t, err, domain.ErrInvalidCode)
	err = h.auth.ChangePassword(ctx, code, newPassword)
	require.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestInitiatePasswordResetUnknownAccount(t *testing.T) {
	h := newTestHarness(t)

	err := h.auth.InitiatePasswordReset(context.Background(), "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChangePasswordRejectsWeakPassword(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.seedUserWithPassword(t, "user-001", "a@x", "alice")
	require.NoError(t, h.auth.InitiatePasswordReset(ctx, "alice"))
	code := resetCode(t, h)

	err := h.auth.ChangePassword(ctx, code, "password1")
	require.ErrorIs(t, err, domain.ErrWeakPassword)

	// The code survives a rejected attempt.
	require.NoError(t, h.auth.VerifyPasswordResetCode(ctx, code))
}

func TestChangePasswordRejectsIdentifierLookalike(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.seedUserWithPassword(t, "user-001", "a@x", "MyD0g$RexBark")
	require.NoError(t, h.auth.InitiatePasswordReset(ctx, "MyD0g$RexBark"))
	code := resetCode(t, h)

	err := h.auth.ChangePassword(ctx, code, "MyD0g$RexBarks")
	require.ErrorIs(t, err, domain.ErrPasswordTooSimilar)
}

func TestChangePasswordExpiredCode(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.seedUserWithPassword(t, "user-001", "a@x", "alice")
	require.NoError(t, h.auth.InitiatePasswordReset(ctx, "alice"))
	code := resetCode(t, h)

	h.clock.Advance(domain.ChangePasswordCodeTTL + time.Second)

	err := h.auth.ChangePassword(ctx, code, "MyD0g$RexBarks")
	require.ErrorIs(t, err, domain.ErrInvalidCode)
}
