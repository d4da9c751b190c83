package dynamo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/dynamo"
)

func TestNewClientWithEndpoint(t *testing.T) {
	ctx := context.Background()

	client, err := dynamo.NewClient(ctx, dynamo.Config{
		Endpoint: "http://localhost:4566",
		Region:   "us-east-2",
		Timeout:  5 * time.Second,
	})

	require.NoError(t, err)
	require.NotNil(t, client)
	require.NotNil(t, client.DB)
}

func TestNewClientWithDefaultEndpoint(t *testing.T) {
	ctx := context.Background()

	client, err := dynamo.NewClient(ctx, dynamo.Config{
		Region:  "us-east-2",
		Timeout: 5 * time.Second,
	})

	require.NoError(t, err)
	require.NotNil(t, client)
	require.NotNil(t, client.DB)
}

func TestErrorClassification(t *testing.T) {
	t.Run("conditional check failed", func(t *testing.T) {
		assert.True(t, dynamo.IsConditionalCheckFailed(dynamo.ErrConditionalCheckFailed()))
		assert.False(t, dynamo.IsConditionalCheckFailed(context.DeadlineExceeded))
	})

	t.Run("transaction canceled", func(t *testing.T) {
		codes, ok := dynamo.IsTransactionCanceledException(
			dynamo.ErrTransactionCanceled("ConditionalCheckFailed", ""),
		)
		require.True(t, ok)
		assert.Equal(t, []string{"ConditionalCheckFailed", ""}, codes)

		_, ok = dynamo.IsTransactionCanceledException(context.DeadlineExceeded)
		assert.False(t, ok)
	})
}
