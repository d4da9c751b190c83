package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/domain"
)

func TestCreateSessionMintsBoundTokens(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	result, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID:              "user-001",
		DeviceFingerprintID: "fp-001",
		App:                 domain.DefaultSessionApp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	require.NotEmpty(t, result.SessionToken)
	require.NotEmpty(t, result.AccessToken)
	assert.Equal(t, testStart.Add(domain.SessionLifetime), result.SessionExpiresAt)
	assert.Equal(t, testStart.Add(domain.AccessTokenLifetime), result.AccessExpiresAt)

	identity, err := h.sessions.ValidateAccess(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-001", identity.UserID)
	assert.Equal(t, result.SessionID, identity.SessionID)

	record, err := h.sessionStore.GetByToken(ctx, result.SessionToken)
	require.NoError(t, err)
	assert.True(t, record.IsActive)
	assert.Empty(t, record.RevokedAt)
	assert.Equal(t, "fp-001", record.DeviceFingerprintID)

	h.wait()
	require.Len(t, h.publisher.notifications, 1)
	assert.Equal(t, "user-001", h.publisher.notifications[0].UserID)
}

func TestValidateAccessRejectsGarbage(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.sessions.ValidateAccess(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.EqualError(t, err, "invalid token: authentication required")
}

func TestValidateAccessRejectsRevokedSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	result, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	require.NoError(t, h.sessions.RevokeByID(ctx, "user-001", result.SessionID))

	_, err = h.sessions.ValidateAccess(ctx, result.AccessToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateSessionRejectsExpiredSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	result, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	h.clock.Advance(domain.SessionLifetime + time.Minute)

	_, err = h.sessions.ValidateSession(ctx, result.SessionToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefreshRotatesSessionToken(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	first, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	h.clock.Advance(time.Hour)

	second, err := h.sessions.Refresh(ctx, first.SessionToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)

	// Rotation preserves the session identity and its original expiry.
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.SessionExpiresAt.Unix(), second.SessionExpiresAt.Unix())

	_, err = h.sessions.ValidateSession(ctx, first.SessionToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	identity, err := h.sessions.ValidateSession(ctx, second.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "user-001", identity.UserID)
}

func TestRefreshRaceLoserRejected(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	first, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	_, err = h.sessions.Refresh(ctx, first.SessionToken)
	require.NoError(t, err)

	_, err = h.sessions.Refresh(ctx, first.SessionToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRevokeByIDIsIdempotent(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	result, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	require.NoError(t, h.sessions.RevokeByID(ctx, "user-001", result.SessionID))
	require.NoError(t, h.sessions.RevokeByID(ctx, "user-001", result.SessionID))
}

func TestRevokeByIDEnforcesOwnership(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	result, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	err = h.sessions.RevokeByID(ctx, "user-002", result.SessionID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	err = h.sessions.RevokeByID(ctx, "user-001", "no-such-session")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListActiveFiltersRevokedAndExpired(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	live, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	revoked, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-002", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)
	require.NoError(t, h.sessions.RevokeByID(ctx, "user-001", revoked.SessionID))

	active, err := h.sessions.ListActive(ctx, "user-001")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, live.SessionID, active[0].SessionID)

	h.clock.Advance(domain.SessionLifetime + time.Minute)
	active, err = h.sessions.ListActive(ctx, "user-001")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCleanupExpiredRevokesStaleSessions(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	h.clock.Advance(domain.SessionLifetime + time.Minute)

	fresh, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-002", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	cleaned, err := h.sessions.CleanupExpired(ctx, "user-001")
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	record, err := h.sessionStore.GetByToken(ctx, fresh.SessionToken)
	require.NoError(t, err)
	assert.True(t, record.IsActive)
}

func TestLogoutRevokesSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	result, err := h.sessions.Create(ctx, app.CreateSessionParams{
		UserID: "user-001", DeviceFingerprintID: "fp-001", App: domain.DefaultSessionApp,
	})
	require.NoError(t, err)

	require.NoError(t, h.sessions.Logout(ctx, result.SessionToken))

	_, err = h.sessions.ValidateSession(ctx, result.SessionToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	// Logging out an already-dead session surfaces the same rejection.
	err = h.sessions.Logout(ctx, result.SessionToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCreateWalletSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	pass := app.WalletPass{
		UserID:          "user-001",
		FingerprintHash: "wallet-hash",
		Browser:         "WalletApp",
		Device:          "iOS",
	}
	require.NoError(t, h.ephemeral.Set(ctx, "wallet_pass_token:tok-wallet-1", pass, domain.WalletPassTokenTTL))

	result, err := h.sessions.CreateWalletSession(ctx, "tok-wallet-1", domain.WalletUserAgent)
	require.NoError(t, err)

	record, err := h.sessionStore.GetByToken(ctx, result.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, domain.WalletSessionApp, record.App)

	fp, err := h.fpStore.Get(ctx, "user-001", "wallet-hash")
	require.NoError(t, err)
	assert.True(t, fp.IsTrusted)
	assert.Equal(t, fp.FingerprintID, record.DeviceFingerprintID)

	// Single use.
	_, err = h.sessions.CreateWalletSession(ctx, "tok-wallet-1", domain.WalletUserAgent)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCreateWalletSessionRejectsForeignUserAgent(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.sessions.CreateWalletSession(context.Background(), "tok-wallet-1", "curl/8.0")
	require.ErrorIs(t, err, domain.ErrForbidden)
}
