package adapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/authsvc/adapter"
	"github.com/decode-platform/auth-service/internal/domain"
	redisclient "github.com/decode-platform/auth-service/internal/redis"
)

func newTestEphemeralStore(t *testing.T) (*adapter.EphemeralStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redisclient.NewClient(redisclient.Config{
		Addr:         mr.Addr(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	return adapter.NewEphemeralStore(client.RDB), mr
}

type testPayload struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

func TestEphemeralStore_SetGet(t *testing.T) {
	t.Run("round trips a struct as JSON", func(t *testing.T) {
		store, _ := newTestEphemeralStore(t)
		ctx := context.Background()

		in := testPayload{UserID: "user-1", Code: "482913"}
		require.NoError(t, store.Set(ctx, "email_verification_code:482913", in, 5*time.Minute))

		var out testPayload
		require.NoError(t, store.Get(ctx, "email_verification_code:482913", &out))
		assert.Equal(t, in, out)
	})

	t.Run("stores plain strings verbatim", func(t *testing.T) {
		store, mr := newTestEphemeralStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "sso:tok", "user-7", time.Minute))

		raw, err := mr.Get("sso:tok")
		require.NoError(t, err)
		assert.Equal(t, "user-7", raw)

		var out string
		require.NoError(t, store.Get(ctx, "sso:tok", &out))
		assert.Equal(t, "user-7", out)
	})

	t.Run("missing key is ErrNotFound", func(t *testing.T) {
		store, _ := newTestEphemeralStore(t)

		var out testPayload
		err := store.Get(context.Background(), "register_info:nobody@example.com", &out)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("expired key is ErrNotFound", func(t *testing.T) {
		store, mr := newTestEphemeralStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "sso:short", "user-9", 60*time.Second))
		mr.FastForward(61 * time.Second)

		var out string
		err := store.Get(ctx, "sso:short", &out)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("applies the requested TTL", func(t *testing.T) {
		store, mr := newTestEphemeralStore(t)

		require.NoError(t, store.Set(context.Background(), "k", "v", 5*time.Minute))
		assert.Equal(t, 5*time.Minute, mr.TTL("k"))
	})
}

func TestEphemeralStore_Delete(t *testing.T) {
	t.Run("removes keys", func(t *testing.T) {
		store, mr := newTestEphemeralStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, store.Set(ctx, "b", "2", time.Minute))

		require.NoError(t, store.Delete(ctx, "a", "b"))
		assert.False(t, mr.Exists("a"))
		assert.False(t, mr.Exists("b"))
	})

	t.Run("absent keys are not an error", func(t *testing.T) {
		store, _ := newTestEphemeralStore(t)
		require.NoError(t, store.Delete(context.Background(), "never-written"))
	})

	t.Run("no keys is a no-op", func(t *testing.T) {
		store, _ := newTestEphemeralStore(t)
		require.NoError(t, store.Delete(context.Background()))
	})
}

func TestEphemeralStore_Exists(t *testing.T) {
	store, _ := newTestEphemeralStore(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEphemeralStore_TTL(t *testing.T) {
	t.Run("reports remaining lifetime", func(t *testing.T) {
		store, _ := newTestEphemeralStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "k", "v", 10*time.Minute))

		ttl, err := store.TTL(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, ttl)
	})

	t.Run("absent key is ErrNotFound", func(t *testing.T) {
		store, _ := newTestEphemeralStore(t)

		_, err := store.TTL(context.Background(), "gone")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEphemeralStore_Incr(t *testing.T) {
	store, _ := newTestEphemeralStore(t)
	ctx := context.Background()

	n, err := store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEphemeralStore_Expire(t *testing.T) {
	t.Run("resets the TTL", func(t *testing.T) {
		store, mr := newTestEphemeralStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
		require.NoError(t, store.Expire(ctx, "k", time.Hour))
		assert.Equal(t, time.Hour, mr.TTL("k"))
	})

	t.Run("absent key is ErrNotFound", func(t *testing.T) {
		store, _ := newTestEphemeralStore(t)

		err := store.Expire(context.Background(), "gone", time.Hour)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
