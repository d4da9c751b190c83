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

// Compile-time check: FingerprintStore satisfies app.FingerprintStore.
var _ app.FingerprintStore = (*FingerprintStore)(nil)

// fingerprintItem is the DynamoDB item shape for the device fingerprints
// table. (user_id, fingerprint_hash) is the composite primary key, which
// gives the at-most-one-record-per-device invariant for free.
type fingerprintItem struct {
	UserID          string `dynamodbav:"user_id"`
	FingerprintHash string `dynamodbav:"fingerprint_hash"`
	FingerprintID   string `dynamodbav:"fingerprint_id"`
	Browser         string `dynamodbav:"browser"`
	Device          string `dynamodbav:"device"`
	IsTrusted       bool   `dynamodbav:"is_trusted"`
	CreatedAt       string `dynamodbav:"created_at"`
	UpdatedAt       string `dynamodbav:"updated_at"`
}

func toFingerprintItem(r app.FingerprintRecord) fingerprintItem {
	return fingerprintItem{
		UserID:          r.UserID,
		FingerprintHash: r.FingerprintHash,
		FingerprintID:   r.FingerprintID,
		Browser:         r.Browser,
		Device:          r.Device,
		IsTrusted:       r.IsTrusted,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromFingerprintItem(item fingerprintItem) *app.FingerprintRecord {
	return &app.FingerprintRecord{
		UserID:          item.UserID,
		FingerprintHash: item.FingerprintHash,
		FingerprintID:   item.FingerprintID,
		Browser:         item.Browser,
		Device:          item.Device,
		IsTrusted:       item.IsTrusted,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

// FingerprintStore persists device fingerprint records in DynamoDB.
type FingerprintStore struct {
	db      sessionDynamoDB
	table   string
	idIndex string
}

// NewFingerprintStore creates a FingerprintStore backed by the given DynamoDB
// client.
func NewFingerprintStore(db sessionDynamoDB, tableName string) *FingerprintStore {
	return &FingerprintStore{
		db:      db,
		table:   tableName,
		idIndex: "fingerprint_id-index",
	}
}

// Create writes a new fingerprint record. Returns domain.ErrAlreadyExists if
// (user_id, fingerprint_hash) is already present.
func (s *FingerprintStore) Create(ctx context.Context, fp app.FingerprintRecord) error {
	ctx, span := tracer.Start(ctx, "dynamo.fingerprints.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "PutItem"),
	)

	av, err := dynamo.MarshalMap(toFingerprintItem(fp))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("fingerprint store: marshal fingerprint: %w", err)
	}

	condExpr := "attribute_not_exists(user_id) AND attribute_not_exists(fingerprint_hash)"

	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:           &s.table,
		Item:                av,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("fingerprint store: create: %w", domain.ErrAlreadyExists)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("fingerprint store: create: %w", err)
	}
	return nil
}

// Get retrieves the fingerprint for (userID, fingerprintHash) with a strongly
// consistent read. Returns domain.ErrNotFound when absent.
func (s *FingerprintStore) Get(ctx context.Context, userID, fingerprintHash string) (*app.FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "dynamo.fingerprints.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "GetItem"),
	)

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.table,
		Key: map[string]dynamo.AttributeValue{
			"user_id":          &dynamo.AttributeValueMemberS{Value: userID},
			"fingerprint_hash": &dynamo.AttributeValueMemberS{Value: fingerprintHash},
		},
		ConsistentRead: dynamo.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fingerprint store: get: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("fingerprint store: get: %w", domain.ErrNotFound)
	}

	var item fingerprintItem
	if err := dynamo.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("fingerprint store: unmarshal fingerprint: %w", err)
	}
	return fromFingerprintItem(item), nil
}

// GetByID retrieves a fingerprint by its stable id via the
// fingerprint_id-index GSI.
func (s *FingerprintStore) GetByID(ctx context.Context, fingerprintID string) (*app.FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "dynamo.fingerprints.get_by_id")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "Query"),
	)

	keyExpr := "fingerprint_id = :fid"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.table,
		IndexName:              &s.idIndex,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":fid": &dynamo.AttributeValueMemberS{Value: fingerprintID},
		},
		Limit: dynamo.Int32(1),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fingerprint store: get by id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("fingerprint store: get by id: %w", domain.ErrNotFound)
	}

	var item fingerprintItem
	if err := dynamo.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("fingerprint store: unmarshal fingerprint: %w", err)
	}
	return fromFingerprintItem(item), nil
}

// ListByUser retrieves all fingerprint records for a user.
func (s *FingerprintStore) ListByUser(ctx context.Context, userID string) ([]app.FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "dynamo.fingerprints.list_by_user")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "Query"),
	)

	keyExpr := "user_id = :uid"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":uid": &dynamo.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fingerprint store: list by user: %w", err)
	}

	var items []fingerprintItem
	if err := dynamo.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("fingerprint store: unmarshal fingerprints: %w", err)
	}
	records := make([]app.FingerprintRecord, 0, len(items))
	for _, item := range items {
		records = append(records, *fromFingerprintItem(item))
	}
	return records, nil
}

// SetTrusted flips the trust flag on an existing fingerprint record.
func (s *FingerprintStore) SetTrusted(ctx context.Context, userID, fingerprintHash string, trusted bool, updatedAt string) error {
	ctx, span := tracer.Start(ctx, "dynamo.fingerprints.set_trusted")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "UpdateItem"),
	)

	updateExpr := "SET is_trusted = :trusted, updated_at = :ua"
	condExpr := "attribute_exists(user_id)"

	_, err := s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName: &s.table,
		Key: map[string]dynamo.AttributeValue{
			"user_id":          &dynamo.AttributeValueMemberS{Value: userID},
			"fingerprint_hash": &dynamo.AttributeValueMemberS{Value: fingerprintHash},
		},
		UpdateExpression:    &updateExpr,
		ConditionExpression: &condExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":trusted": &dynamo.AttributeValueMemberBOOL{Value: trusted},
			":ua":      &dynamo.AttributeValueMemberS{Value: updatedAt},
		},
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("fingerprint store: set trusted: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("fingerprint store: set trusted: %w", err)
	}
	return nil
}
