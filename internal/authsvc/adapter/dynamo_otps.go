package adapter

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/dynamo"
)

// Compile-time check: OtpConfigStore satisfies app.OtpConfigStore.
var _ app.OtpConfigStore = (*OtpConfigStore)(nil)

// otpConfigItem is the DynamoDB item shape for the otp configs table. One
// item per user; the secret is stored sealed.
type otpConfigItem struct {
	UserID     string `dynamodbav:"user_id"`
	OtpSecret  string `dynamodbav:"otp_secret"`
	OtpEnabled bool   `dynamodbav:"otp_enable"`
	CreatedAt  string `dynamodbav:"created_at"`
	UpdatedAt  string `dynamodbav:"updated_at"`
}

// OtpConfigStore persists per-user TOTP configuration in DynamoDB.
type OtpConfigStore struct {
	db    sessionDynamoDB
	table string
}

// NewOtpConfigStore creates an OtpConfigStore backed by the given DynamoDB
// client.
func NewOtpConfigStore(db sessionDynamoDB, tableName string) *OtpConfigStore {
	return &OtpConfigStore{db: db, table: tableName}
}

// Create writes a new config. Returns domain.ErrAlreadyExists if the user
// already has one.
func (s *OtpConfigStore) Create(ctx context.Context, cfg app.OtpConfigRecord) error {
	ctx, span := tracer.Start(ctx, "dynamo.otps.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "PutItem"),
	)

	av, err := dynamo.MarshalMap(otpConfigItem{
		UserID:     cfg.UserID,
		OtpSecret:  cfg.SecretSealed,
		OtpEnabled: cfg.Enabled,
		CreatedAt:  cfg.CreatedAt,
		UpdatedAt:  cfg.UpdatedAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("otp store: marshal config: %w", err)
	}

	condExpr := "attribute_not_exists(user_id)"

	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:           &s.table,
		Item:                av,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("otp store: create: %w", domain.ErrAlreadyExists)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("otp store: create: %w", err)
	}
	return nil
}

// Get retrieves the user's config with a strongly consistent read. Returns
// domain.ErrNotFound when absent.
func (s *OtpConfigStore) Get(ctx context.Context, userID string) (*app.OtpConfigRecord, error) {
	ctx, span := tracer.Start(ctx, "dynamo.otps.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "GetItem"),
	)

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.table,
		Key: map[string]dynamo.AttributeValue{
			"user_id": &dynamo.AttributeValueMemberS{Value: userID},
		},
		ConsistentRead: dynamo.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("otp store: get: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp store: get: %w", domain.ErrNotFound)
	}

	var item otpConfigItem
	if err := dynamo.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("otp store: unmarshal config: %w", err)
	}
	return &app.OtpConfigRecord{
		UserID:       item.UserID,
		SecretSealed: item.OtpSecret,
		Enabled:      item.OtpEnabled,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}, nil
}

// SetEnabled flips the enable flag on an existing config.
func (s *OtpConfigStore) SetEnabled(ctx context.Context, userID string, enabled bool, updatedAt string) error {
	ctx, span := tracer.Start(ctx, "dynamo.otps.set_enabled")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "UpdateItem"),
	)

	updateExpr := "SET otp_enable = :enabled, updated_at = :ua"
	condExpr := "attribute_exists(user_id)"

	_, err := s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName: &s.table,
		Key: map[string]dynamo.AttributeValue{
			"user_id": &dynamo.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression:    &updateExpr,
		ConditionExpression: &condExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":enabled": &dynamo.AttributeValueMemberBOOL{Value: enabled},
			":ua":      &dynamo.AttributeValueMemberS{Value: updatedAt},
		},
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("otp store: set enabled: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("otp store: set enabled: %w", err)
	}
	return nil
}
