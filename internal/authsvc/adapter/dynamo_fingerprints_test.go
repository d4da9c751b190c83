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

const fingerprintsTable = "device_fingerprints"

func sampleFingerprintRecord() app.FingerprintRecord {
	return app.FingerprintRecord{
		UserID:          "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		FingerprintHash: "fp-hash-abc",
		FingerprintID:   "22222222-3333-4444-5555-666666666666",
		Browser:         "Firefox",
		Device:          "Linux",
		IsTrusted:       true,
		CreatedAt:       "2026-02-10T12:00:00Z",
		UpdatedAt:       "2026-02-10T12:00:00Z",
	}
}

func marshaledFingerprint(t *testing.T) map[string]dynamo.AttributeValue {
	t.Helper()
	av, err := dynamo.MarshalMap(toFingerprintItem(sampleFingerprintRecord()))
	require.NoError(t, err)
	return av
}

func TestFingerprintStore_Create(t *testing.T) {
	tests := []struct {
		name      string
		putItemFn func(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
		wantErr   error
		errSubstr string
	}{
		{
			name: "success - conditions on the composite key",
			putItemFn: func(_ context.Context, params *dynamo.PutItemInput, _ ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error) {
				assert.Equal(t, fingerprintsTable, *params.TableName)
				require.NotNil(t, params.ConditionExpression)
				assert.Contains(t, *params.ConditionExpression, "attribute_not_exists(user_id)")
				assert.Contains(t, *params.ConditionExpression, "attribute_not_exists(fingerprint_hash)")
				assert.Contains(t, params.Item, "fingerprint_id")
				assert.Contains(t, params.Item, "is_trusted")
				return &dynamo.PutItemOutput{}, nil
			},
		},
		{
			name: "device already recorded - returns ErrAlreadyExists",
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
			errSubstr: "fingerprint store: create: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewFingerprintStore(&stubSessionDynamo{putItemFn: tt.putItemFn}, fingerprintsTable)

			err := store.Create(context.Background(), sampleFingerprintRecord())

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

func TestFingerprintStore_Get(t *testing.T) {
	t.Run("found - consistent read on the composite key", func(t *testing.T) {
		store := NewFingerprintStore(&stubSessionDynamo{
			getItemFn: func(_ context.Context, params *dynamo.GetItemInput, _ ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error) {
				require.NotNil(t, params.ConsistentRead)
				assert.True(t, *params.ConsistentRead)
				uid, ok := params.Key["user_id"].(*dynamo.AttributeValueMemberS)
				require.True(t, ok)
				assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", uid.Value)
				hash, ok := params.Key["fingerprint_hash"].(*dynamo.AttributeValueMemberS)
				require.True(t, ok)
				assert.Equal(t, "fp-hash-abc", hash.Value)
				return &dynamo.GetItemOutput{Item: marshaledFingerprint(t)}, nil
			},
		}, fingerprintsTable)

		got, err := store.Get(context.Background(), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "fp-hash-abc")
		require.NoError(t, err)
		assert.Equal(t, sampleFingerprintRecord(), *got)
	})

	t.Run("missing - returns ErrNotFound", func(t *testing.T) {
		store := NewFingerprintStore(&stubSessionDynamo{
			getItemFn: func(_ context.Context, _ *dynamo.GetItemInput, _ ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error) {
				return &dynamo.GetItemOutput{}, nil
			},
		}, fingerprintsTable)

		_, err := store.Get(context.Background(), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "unknown-hash")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestFingerprintStore_GetByID(t *testing.T) {
	t.Run("found - queries the fingerprint_id GSI", func(t *testing.T) {
		store := NewFingerprintStore(&stubSessionDynamo{
			queryFn: func(_ context.Context, params *dynamo.QueryInput, _ ...func(*dynamo.Options)) (*dynamo.QueryOutput, error) {
				require.NotNil(t, params.IndexName)
				assert.Equal(t, "fingerprint_id-index", *params.IndexName)
				assert.Equal(t, "fingerprint_id = :fid", *params.KeyConditionExpression)
				return &dynamo.QueryOutput{
					Items: []map[string]dynamo.AttributeValue{marshaledFingerprint(t)},
				}, nil
			},
		}, fingerprintsTable)

		got, err := store.GetByID(context.Background(), "22222222-3333-4444-5555-666666666666")
		require.NoError(t, err)
		assert.Equal(t, "fp-hash-abc", got.FingerprintHash)
	})

	t.Run("missing - returns ErrNotFound", func(t *testing.T) {
		store := NewFingerprintStore(&stubSessionDynamo{
			queryFn: func(_ context.Context, _ *dynamo.QueryInput, _ ...func(*dynamo.Options)) (*dynamo.QueryOutput, error) {
				return &dynamo.QueryOutput{}, nil
			},
		}, fingerprintsTable)

		_, err := store.GetByID(context.Background(), "unknown-id")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestFingerprintStore_ListByUser(t *testing.T) {
	store := NewFingerprintStore(&stubSessionDynamo{
		queryFn: func(_ context.Context, params *dynamo.QueryInput, _ ...func(*dynamo.Options)) (*dynamo.QueryOutput, error) {
			// Base table query, no index.
			assert.Nil(t, params.IndexName)
			assert.Equal(t, "user_id = :uid", *params.KeyConditionExpression)
			return &dynamo.QueryOutput{
				Items: []map[string]dynamo.AttributeValue{marshaledFingerprint(t)},
			}, nil
		},
	}, fingerprintsTable)

	records, err := store.ListByUser(context.Background(), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sampleFingerprintRecord(), records[0])
}

func TestFingerprintStore_SetTrusted(t *testing.T) {
	tests := []struct {
		name         string
		updateItemFn func(ctx context.Context, params *dynamo.UpdateItemInput, optFns ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error)
		wantErr      error
	}{
		{
			name: "success - flips trust and stamps updated_at",
			updateItemFn: func(_ context.Context, params *dynamo.UpdateItemInput, _ ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error) {
				assert.Contains(t, *params.UpdateExpression, "is_trusted = :trusted")
				assert.Contains(t, *params.UpdateExpression, "updated_at = :ua")
				require.NotNil(t, params.ConditionExpression)
				assert.Equal(t, "attribute_exists(user_id)", *params.ConditionExpression)
				trusted, ok := params.ExpressionAttributeValues[":trusted"].(*dynamo.AttributeValueMemberBOOL)
				require.True(t, ok)
				assert.True(t, trusted.Value)
				return &dynamo.UpdateItemOutput{}, nil
			},
		},
		{
			name: "absent record - returns ErrNotFound",
			updateItemFn: func(_ context.Context, _ *dynamo.UpdateItemInput, _ ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error) {
				return nil, dynamo.ErrConditionalCheckFailed()
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewFingerprintStore(&stubSessionDynamo{updateItemFn: tt.updateItemFn}, fingerprintsTable)

			err := store.SetTrusted(context.Background(), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "fp-hash-abc", true, "2026-02-11T08:00:00Z")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
