package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/domain/domaintest"
	"github.com/decode-platform/auth-service/internal/token"
)

func accessConfig(clock domain.Clock) token.Config {
	return token.Config{
		Secret:   domain.SecretString("access-secret"),
		Issuer:   "decode-auth",
		Audience: "decode-api",
		Lifetime: domain.AccessTokenLifetime,
		Clock:    clock,
	}
}

func sessionConfig(clock domain.Clock) token.Config {
	return token.Config{
		Secret:   domain.SecretString("session-secret"),
		Issuer:   "decode-auth-session",
		Audience: "decode-auth",
		Lifetime: domain.SessionLifetime,
		Clock:    clock,
	}
}

func TestAccessCodecRoundTrip(t *testing.T) {
	clock := domaintest.NewFakeClock(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	codec := token.NewAccessCodec(accessConfig(clock))

	signed, expiresAt, err := codec.Mint("user-42", "session-jwt")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(domain.AccessTokenLifetime), expiresAt)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "session-jwt", claims.SessionToken)
	assert.Equal(t, "decode-auth", claims.Issuer)
}

func TestAccessCodecExpired(t *testing.T) {
	clock := domaintest.NewFakeClock(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	codec := token.NewAccessCodec(accessConfig(clock))

	signed, _, err := codec.Mint("user-42", "session-jwt")
	require.NoError(t, err)

	clock.Advance(domain.AccessTokenLifetime + time.Minute)

	_, err = codec.Verify(signed)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAccessCodecRejectsForeignTokens(t *testing.T) {
	clock := domaintest.NewFakeClock(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	codec := token.NewAccessCodec(accessConfig(clock))

	t.Run("wrong secret", func(t *testing.T) {
		cfg := accessConfig(clock)
		cfg.Secret = domain.SecretString("some-other-secret")
		signed, _, err := token.NewAccessCodec(cfg).Mint("user-42", "session-jwt")
		require.NoError(t, err)

		_, err = codec.Verify(signed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		cfg := accessConfig(clock)
		cfg.Issuer = "someone-else"
		signed, _, err := token.NewAccessCodec(cfg).Mint("user-42", "session-jwt")
		require.NoError(t, err)

		_, err = codec.Verify(signed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong audience", func(t *testing.T) {
		cfg := accessConfig(clock)
		cfg.Audience = "someone-else"
		signed, _, err := token.NewAccessCodec(cfg).Mint("user-42", "session-jwt")
		require.NoError(t, err)

		_, err = codec.Verify(signed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Verify("not-a-jwt")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestAccessCodecFailuresAreUniform(t *testing.T) {
	clock := domaintest.NewFakeClock(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	codec := token.NewAccessCodec(accessConfig(clock))

	expired, _, err := codec.Mint("user-42", "session-jwt")
	require.NoError(t, err)
	clock.Advance(domain.AccessTokenLifetime + time.Minute)
	_, expiredErr := codec.Verify(expired)

	_, garbageErr := codec.Verify("not-a-jwt")

	// The error text never discloses which verification step failed.
	require.Error(t, expiredErr)
	require.Error(t, garbageErr)
	assert.Equal(t, expiredErr.Error(), garbageErr.Error())
}

func TestSessionCodecRoundTrip(t *testing.T) {
	clock := domaintest.NewFakeClock(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	codec := token.NewSessionCodec(sessionConfig(clock))

	signed, expiresAt, err := codec.Mint("user-42")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(domain.SessionLifetime), expiresAt)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.NotEmpty(t, claims.ID)
}

func TestSessionCodecMintsUniqueTokens(t *testing.T) {
	clock := domaintest.NewFakeClock(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	codec := token.NewSessionCodec(sessionConfig(clock))

	first, _, err := codec.Mint("user-42")
	require.NoError(t, err)
	second, _, err := codec.Mint("user-42")
	require.NoError(t, err)

	// Same user, same instant: the jti still makes every session token unique.
	assert.NotEqual(t, first, second)
}

func TestSessionTokenNotValidAsAccessToken(t *testing.T) {
	clock := domaintest.NewFakeClock(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	sessions := token.NewSessionCodec(sessionConfig(clock))
	access := token.NewAccessCodec(accessConfig(clock))

	signed, _, err := sessions.Mint("user-42")
	require.NoError(t, err)

	_, err = access.Verify(signed)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
