package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/dynamo"
)

const otpsTable = "otp_configs"

func sampleOtpConfig() app.OtpConfigRecord {
	return app.OtpConfigRecord{
		UserID:       "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		SecretSealed: "sealed-base64-blob",
		Enabled:      false,
		CreatedAt:    "2026-02-10T12:00:00Z",
		UpdatedAt:    "2026-02-10T12:00:00Z",
	}
}

func TestOtpConfigStore_Create(t *testing.T) {
	tests := []struct {
		name      string
		putItemFn func(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
		wantErr   error
		errSubstr string
	}{
		{
			name: "success - stores the sealed secret",
			putItemFn: func(_ context.Context, params *dynamo.PutItemInput, _ ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error) {
				assert.Equal(t, otpsTable, *params.TableName)
				require.NotNil(t, params.ConditionExpression)
				assert.Equal(t, "attribute_not_exists(user_id)", *params.ConditionExpression)
				secret, ok := params.Item["otp_secret"].(*dynamo.AttributeValueMemberS)
				require.True(t, ok)
				assert.Equal(t, "sealed-base64-blob", secret.Value)
				enabled, ok := params.Item["otp_enable"].(*dynamo.AttributeValueMemberBOOL)
				require.True(t, ok)
				assert.False(t, enabled.Value)
				return &dynamo.PutItemOutput{}, nil
			},
		},
		{
			name: "config already present - returns ErrAlreadyExists",
			putItemFn: func(_ context.Context, _ *dynamo.PutItemInput, _ ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error) {
				return nil, dynamo.ErrConditionalCheckFailed()
			},
			wantErr: domain.ErrAlreadyExists,
		},
		{
			name: "dynamo error - wraps with context",
			putItemFn: func(_ context.Context, _ *dynamo.PutItemInput, _ ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error) {
				return nil, errors.New("connection refused")
			},
			errSubstr: "otp store: create: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewOtpConfigStore(&stubSessionDynamo{putItemFn: tt.putItemFn}, otpsTable)

			err := store.Create(context.Background(), sampleOtpConfig())

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errSubstr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestOtpConfigStore_Get(t *testing.T) {
	t.Run("found - maps the item back to a record", func(t *testing.T) {
		av, err := dynamo.MarshalMap(otpConfigItem{
			UserID:     "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
			OtpSecret:  "sealed-base64-blob",
			OtpEnabled: true,
			CreatedAt:  "2026-02-10T12:00:00Z",
			UpdatedAt:  "2026-02-11T09:00:00Z",
		})
		require.NoError(t, err)

		store := NewOtpConfigStore(&stubSessionDynamo{
			getItemFn: func(_ context.Context, params *dynamo.GetItemInput, _ ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error) {
				require.NotNil(t, params.ConsistentRead)
				assert.True(t, *params.ConsistentRead)
				return &dynamo.GetItemOutput{Item: av}, nil
			},
		}, otpsTable)

		got, err := store.Get(context.Background(), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
		require.NoError(t, err)
		assert.Equal(t, "sealed-base64-blob", got.SecretSealed)
		assert.True(t, got.Enabled)
		assert.Equal(t, "2026-02-11T09:00:00Z", got.UpdatedAt)
	})

	t.Run("missing - returns ErrNotFound", func(t *testing.T) {
		store := NewOtpConfigStore(&stubSessionDynamo{
			getItemFn: func(_ context.Context, _ *dynamo.GetItemInput, _ ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error) {
				return &dynamo.GetItemOutput{}, nil
			},
		}, otpsTable)

		_, err := store.Get(context.Background(), "no-such-user")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestOtpConfigStore_SetEnabled(t *testing.T) {
	t.Run("success - flips otp_enable", func(t *testing.T) {
		store := NewOtpConfigStore(&stubSessionDynamo{
			updateItemFn: func(_ context.Context, params *dynamo.UpdateItemInput, _ ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error) {
				assert.Contains(t, *params.UpdateExpression, "otp_enable = :enabled")
				require.NotNil(t, params.ConditionExpression)
				assert.Equal(t, "attribute_exists(user_id)", *params.ConditionExpression)
				enabled, ok := params.ExpressionAttributeValues[":enabled"].(*dynamo.AttributeValueMemberBOOL)
				require.True(t, ok)
				assert.True(t, enabled.Value)
				return &dynamo.UpdateItemOutput{}, nil
			},
		}, otpsTable)

		err := store.SetEnabled(context.Background(), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", true, "2026-02-11T09:00:00Z")
		assert.NoError(t, err)
	})

	t.Run("no config - returns ErrNotFound", func(t *testing.T) {
		store := NewOtpConfigStore(&stubSessionDynamo{
			updateItemFn: func(_ context.Context, _ *dynamo.UpdateItemInput, _ ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error) {
				return nil, dynamo.ErrConditionalCheckFailed()
			},
		}, otpsTable)

		err := store.SetEnabled(context.Background(), "no-such-user", true, "2026-02-11T09:00:00Z")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
