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

// Compile-time check: SessionStore satisfies app.SessionStore.
var _ app.SessionStore = (*SessionStore)(nil)

// sessionDynamoDB is a narrow, consumer-defined interface for DynamoDB
// operations required by the session store. The *dynamodb.Client satisfies
// this interface.
type sessionDynamoDB interface {
	GetItem(ctx context.Context, params *dynamo.GetItemInput, optFns ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
	Query(ctx context.Context, params *dynamo.QueryInput, optFns ...func(*dynamo.Options)) (*dynamo.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamo.UpdateItemInput, optFns ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error)
}

// sessionItem is the DynamoDB item shape for the sessions table. The session
// token is the partition key; rotation moves the record to a new key.
type sessionItem struct {
	SessionToken        string `dynamodbav:"session_token"`
	SessionID           string `dynamodbav:"session_id"`
	UserID              string `dynamodbav:"user_id"`
	DeviceFingerprintID string `dynamodbav:"device_fingerprint_id"`
	App                 string `dynamodbav:"app"`
	CreatedAt           string `dynamodbav:"created_at"`
	LastUsedAt          string `dynamodbav:"last_used_at"`
	ExpiresAt           string `dynamodbav:"expires_at"`
	IsActive            bool   `dynamodbav:"is_active"`
	RevokedAt           string `dynamodbav:"revoked_at,omitempty"`
	TTL                 int64  `dynamodbav:"ttl"`
}

func toSessionItem(r app.SessionRecord) sessionItem {
	return sessionItem{
		SessionToken:        r.SessionToken,
		SessionID:           r.SessionID,
		UserID:              r.UserID,
		DeviceFingerprintID: r.DeviceFingerprintID,
		App:                 r.App,
		CreatedAt:           r.CreatedAt,
		LastUsedAt:          r.LastUsedAt,
		ExpiresAt:           r.ExpiresAt,
		IsActive:            r.IsActive,
		RevokedAt:           r.RevokedAt,
		TTL:                 r.TTL,
	}
}

func fromSessionItem(item sessionItem) *app.SessionRecord {
	return &app.SessionRecord{
		SessionToken:        item.SessionToken,
		SessionID:           item.SessionID,
		UserID:              item.UserID,
		DeviceFingerprintID: item.DeviceFingerprintID,
		App:                 item.App,
		CreatedAt:           item.CreatedAt,
		LastUsedAt:          item.LastUsedAt,
		ExpiresAt:           item.ExpiresAt,
		IsActive:            item.IsActive,
		RevokedAt:           item.RevokedAt,
		TTL:                 item.TTL,
	}
}

// SessionStore persists session records in DynamoDB.
type SessionStore struct {
	db               sessionDynamoDB
	tableName        string
	userIndex        string
	fingerprintIndex string
	sessionIDIndex   string
}

// NewSessionStore creates a SessionStore backed by the given DynamoDB client.
func NewSessionStore(db sessionDynamoDB, tableName string) *SessionStore {
	return &SessionStore{
		db:               db,
		tableName:        tableName,
		userIndex:        "user_sessions-index",
		fingerprintIndex: "fingerprint_sessions-index",
		sessionIDIndex:   "session_id-index",
	}
}

// Create writes a new session record. Returns domain.ErrAlreadyExists if the
// session token is already taken.
func (s *SessionStore) Create(ctx context.Context, session app.SessionRecord) error {
	ctx, span := tracer.Start(ctx, "dynamo.sessions.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "PutItem"),
	)

	av, err := dynamo.MarshalMap(toSessionItem(session))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session store: marshal session: %w", err)
	}

	condExpr := "attribute_not_exists(session_token)"

	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("session store: create: %w", domain.ErrAlreadyExists)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session store: create: %w", err)
	}
	return nil
}

// GetByToken retrieves a session by its token using a strongly consistent
// read. Returns domain.ErrNotFound when absent.
func (s *SessionStore) GetByToken(ctx context.Context, sessionToken string) (*app.SessionRecord, error) {
	ctx, span := tracer.Start(ctx, "dynamo.sessions.get_by_token")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "GetItem"),
	)

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"session_token": &dynamo.AttributeValueMemberS{Value: sessionToken},
		},
		ConsistentRead: dynamo.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("session store: get by token: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session store: get by token: %w", domain.ErrNotFound)
	}

	return s.unmarshalSession(out.Item)
}

// GetByID retrieves a session by its stable session id via the
// session_id-index GSI.
func (s *SessionStore) GetByID(ctx context.Context, sessionID string) (*app.SessionRecord, error) {
	ctx, span := tracer.Start(ctx, "dynamo.sessions.get_by_id")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "Query"),
	)

	keyExpr := "session_id = :sid"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.sessionIDIndex,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":sid": &dynamo.AttributeValueMemberS{Value: sessionID},
		},
		Limit: dynamo.Int32(1),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("session store: get by id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("session store: get by id: %w", domain.ErrNotFound)
	}

	return s.unmarshalSession(out.Items[0])
}

// ListByUser retrieves all sessions for a user via the user_sessions-index
// GSI. Lifecycle filtering is the caller's concern.
func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]app.SessionRecord, error) {
	ctx, span := tracer.Start(ctx, "dynamo.sessions.list_by_user")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "Query"),
	)

	return s.queryIndex(ctx, s.userIndex, "user_id = :v", userID)
}

// ListByFingerprint retrieves all sessions bound to a device fingerprint via
// the fingerprint_sessions-index GSI.
func (s *SessionStore) ListByFingerprint(ctx context.Context, fingerprintID string) ([]app.SessionRecord, error) {
	ctx, span := tracer.Start(ctx, "dynamo.sessions.list_by_fingerprint")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "Query"),
	)

	return s.queryIndex(ctx, s.fingerprintIndex, "device_fingerprint_id = :v", fingerprintID)
}

// Revoke flips a session to inactive and stamps revoked_at. Idempotent on
// already-revoked sessions; revoking an absent token is domain.ErrNotFound.
func (s *SessionStore) Revoke(ctx context.Context, sessionToken, revokedAt string) error {
	ctx, span := tracer.Start(ctx, "dynamo.sessions.revoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "UpdateItem"),
	)

	updateExpr := "SET is_active = :inactive, revoked_at = :ra"
	condExpr := "attribute_exists(session_token)"

	_, err := s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"session_token": &dynamo.AttributeValueMemberS{Value: sessionToken},
		},
		UpdateExpression:    &updateExpr,
		ConditionExpression: &condExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":inactive": &dynamo.AttributeValueMemberBOOL{Value: false},
			":ra":       &dynamo.AttributeValueMemberS{Value: revokedAt},
		},
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("session store: revoke: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session store: revoke: %w", err)
	}
	return nil
}

// Touch updates last_used_at without touching lifecycle state.
func (s *SessionStore) Touch(ctx context.Context, sessionToken, lastUsedAt string) error {
	ctx, span := tracer.Start(ctx, "dynamo.sessions.touch")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "UpdateItem"),
	)

	updateExpr := "SET last_used_at = :lua"
	condExpr := "attribute_exists(session_token)"

	_, err := s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"session_token": &dynamo.AttributeValueMemberS{Value: sessionToken},
		},
		UpdateExpression:    &updateExpr,
		ConditionExpression: &condExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":lua": &dynamo.AttributeValueMemberS{Value: lastUsedAt},
		},
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			// The session rotated or expired under the touch; nothing to do.
			return fmt.Errorf("session store: touch: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session store: touch: %w", err)
	}
	return nil
}

func (s *SessionStore) queryIndex(ctx context.Context, index, keyExpr, value string) ([]app.SessionRecord, error) {
	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &index,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":v": &dynamo.AttributeValueMemberS{Value: value},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session store: query %s: %w", index, err)
	}

	var items []sessionItem
	if err := dynamo.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("session store: unmarshal sessions: %w", err)
	}
	sessions := make([]app.SessionRecord, 0, len(items))
	for _, item := range items {
		sessions = append(sessions, *fromSessionItem(item))
	}
	return sessions, nil
}

func (s *SessionStore) unmarshalSession(item map[string]dynamo.AttributeValue) (*app.SessionRecord, error) {
	var si sessionItem
	if err := dynamo.UnmarshalMap(item, &si); err != nil {
		return nil, fmt.Errorf("session store: unmarshal session: %w", err)
	}
	return fromSessionItem(si), nil
}
