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

// Compile-time check: SessionRotator satisfies app.SessionRotator.
var _ app.SessionRotator = (*SessionRotator)(nil)

// txDynamoDB is a narrow, consumer-defined interface for DynamoDB transaction
// operations. The *dynamodb.Client satisfies this interface.
type txDynamoDB interface {
	TransactWriteItems(ctx context.Context, params *dynamo.TransactWriteItemsInput, optFns ...func(*dynamo.Options)) (*dynamo.TransactWriteItemsOutput, error)
}

// SessionRotator atomically moves a session record from its old token key to
// a new one. The session token is the table's partition key, so rotation is a
// two-item transaction rather than an in-place update.
type SessionRotator struct {
	db        txDynamoDB
	tableName string
}

// NewSessionRotator creates a SessionRotator backed by the given DynamoDB
// client.
func NewSessionRotator(db txDynamoDB, tableName string) *SessionRotator {
	return &SessionRotator{db: db, tableName: tableName}
}

// Rotate executes a 2-item TransactWriteItems:
//
//	[0] delete of the old token's record, conditional on it still being active
//	[1] put of the successor record, conditional on the new token being free
//
// A condition failure on either item means a concurrent rotation or revocation
// won; the caller observes domain.ErrUnauthorized, same as any other dead
// token.
func (r *SessionRotator) Rotate(ctx context.Context, oldToken string, next app.SessionRecord) error {
	ctx, span := tracer.Start(ctx, "dynamo.tx.rotate_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "TransactWriteItems"),
	)

	av, err := dynamo.MarshalMap(toSessionItem(next))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session rotator: marshal session: %w", err)
	}

	deleteCond := "attribute_exists(session_token) AND is_active = :active"
	putCond := "attribute_not_exists(session_token)"

	_, err = r.db.TransactWriteItems(ctx, &dynamo.TransactWriteItemsInput{
		TransactItems: []dynamo.TransactWriteItem{
			{
				Delete: &dynamo.Delete{
					TableName: &r.tableName,
					Key: map[string]dynamo.AttributeValue{
						"session_token": &dynamo.AttributeValueMemberS{Value: oldToken},
					},
					ConditionExpression: &deleteCond,
					ExpressionAttributeValues: map[string]dynamo.AttributeValue{
						":active": &dynamo.AttributeValueMemberBOOL{Value: true},
					},
				},
			},
			{
				Put: &dynamo.Put{
					TableName:           &r.tableName,
					Item:                av,
					ConditionExpression: &putCond,
				},
			},
		},
	})
	if err != nil {
		if reasons, ok := dynamo.IsTransactionCanceledException(err); ok {
			for _, reason := range reasons {
				if reason == "ConditionalCheckFailed" {
					// Lost the rotation race; the old token is already gone.
					return fmt.Errorf("session rotator: rotate: %w", domain.ErrUnauthorized)
				}
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session rotator: rotate: %w", err)
	}
	return nil
}
