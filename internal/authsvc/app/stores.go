package app

import (
	"context"
	"time"
)

// SessionStore persists and retrieves session records.
type SessionStore interface {
	// Create writes a new session. Fails with domain.ErrAlreadyExists if the
	// session token is taken.
	Create(ctx context.Context, session SessionRecord) error
	GetByToken(ctx context.Context, sessionToken string) (*SessionRecord, error)
	GetByID(ctx context.Context, sessionID string) (*SessionRecord, error)
	ListByUser(ctx context.Context, userID string) ([]SessionRecord, error)
	ListByFingerprint(ctx context.Context, fingerprintID string) ([]SessionRecord, error)
	// Revoke sets is_active=false and revoked_at. Idempotent: revoking a
	// revoked session succeeds.
	Revoke(ctx context.Context, sessionToken, revokedAt string) error
	// Touch updates last_used_at without touching lifecycle state.
	Touch(ctx context.Context, sessionToken, lastUsedAt string) error
}

// SessionRotator atomically replaces a session's token. The old token's
// record is deleted and the successor written in a single transaction; losers
// of a concurrent rotation race observe domain.ErrUnauthorized.
type SessionRotator interface {
	Rotate(ctx context.Context, oldToken string, next SessionRecord) error
}

// FingerprintStore persists and retrieves device fingerprint records.
type FingerprintStore interface {
	// Create writes a new fingerprint. Fails with domain.ErrAlreadyExists if
	// (user_id, fingerprint_hash) is taken.
	Create(ctx context.Context, fp FingerprintRecord) error
	Get(ctx context.Context, userID, fingerprintHash string) (*FingerprintRecord, error)
	GetByID(ctx context.Context, fingerprintID string) (*FingerprintRecord, error)
	ListByUser(ctx context.Context, userID string) ([]FingerprintRecord, error)
	SetTrusted(ctx context.Context, userID, fingerprintHash string, trusted bool, updatedAt string) error
}

// OtpConfigStore persists per-user TOTP configuration.
type OtpConfigStore interface {
	// Create writes a new config. Fails with domain.ErrAlreadyExists if the
	// user already has one.
	Create(ctx context.Context, cfg OtpConfigRecord) error
	Get(ctx context.Context, userID string) (*OtpConfigRecord, error)
	SetEnabled(ctx context.Context, userID string, enabled bool, updatedAt string) error
}

// EphemeralStore is the TTL key/value façade over the external cache. Values
// are JSON-serialized; Get deserializes into dest, falling back to raw string
// when the stored value is not JSON. Writes are atomic per key; cross-key
// consistency is not provided.
type EphemeralStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get returns domain.ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// UserDirectory is the remote user-profile service. Absence maps to
// domain.ErrNotFound; remote failures map to infrastructure errors.
type UserDirectory interface {
	CheckExists(ctx context.Context, emailOrUsername string) (bool, error)
	Create(ctx context.Context, user NewUser) (*UserRecord, error)
	ChangePassword(ctx context.Context, userID, newHash string) error
	GetByEmailOrUsername(ctx context.Context, emailOrUsername string) (*UserRecord, error)
	GetByID(ctx context.Context, userID string) (*UserRecord, error)
	GetWithPasswordByID(ctx context.Context, userID string) (*UserWithPassword, error)
	GetWithPasswordByEmailOrUsername(ctx context.Context, emailOrUsername string) (*UserWithPassword, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

// EmailRequest is an outbound email-dispatch event. Type selects the
// template; Data carries its fill-ins.
type EmailRequest struct {
	Type string    `json:"type"`
	Data EmailData `json:"data"`
}

// EmailData is the template payload for an email request.
type EmailData struct {
	Email    string `json:"email"`
	Code     string `json:"code,omitempty"`
	Username string `json:"username,omitempty"`
}

// UserCreatedEvent feeds the graph-sync queue after registration.
type UserCreatedEvent struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// NotificationEvent feeds the notifications queue.
type NotificationEvent struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EventPublisher emits fire-and-forget events on the message bus. Callers'
// success never depends on delivery.
type EventPublisher interface {
	PublishEmailRequest(ctx context.Context, req EmailRequest) error
	PublishUserCreated(ctx context.Context, evt UserCreatedEvent) error
	PublishNotification(ctx context.Context, evt NotificationEvent) error
}
