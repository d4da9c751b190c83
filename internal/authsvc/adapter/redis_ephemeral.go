package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/domain"
	redisclient "github.com/decode-platform/auth-service/internal/redis"
)

// Compile-time check: EphemeralStore satisfies app.EphemeralStore.
var _ app.EphemeralStore = (*EphemeralStore)(nil)

// EphemeralStore implements the TTL key/value facade over Redis. Values are
// stored as JSON; Get falls back to treating the stored value as a raw string
// when it does not parse, for keys written by sibling services.
type EphemeralStore struct {
	cmd redisclient.Cmdable
}

// NewEphemeralStore creates an EphemeralStore that uses cmd for Redis
// operations.
func NewEphemeralStore(cmd redisclient.Cmdable) *EphemeralStore {
	return &EphemeralStore{cmd: cmd}
}

// Set stores value under key with the given TTL. Strings and byte slices are
// stored as-is; everything else is JSON-serialized.
func (s *EphemeralStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.ephemeral.set")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SET"),
	)

	payload, err := encodeValue(value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: encode %q: %w", key, err)
	}

	if err := s.cmd.Set(ctx, key, payload, ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: set %q: %w", key, err)
	}
	return nil
}

// Get loads the value at key into dest. Missing or expired keys are
// domain.ErrNotFound. A *string dest accepts any stored value verbatim.
func (s *EphemeralStore) Get(ctx context.Context, key string, dest any) error {
	ctx, span := tracer.Start(ctx, "redis.ephemeral.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "GET"),
	)

	raw, err := s.cmd.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return fmt.Errorf("ephemeral store: get %q: %w", key, domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: get %q: %w", key, err)
	}

	if sp, ok := dest.(*string); ok {
		*sp = raw
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("ephemeral store: decode %q: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Deleting absent keys is not an error.
func (s *EphemeralStore) Delete(ctx context.Context, keys ...string) error {
	ctx, span := tracer.Start(ctx, "redis.ephemeral.delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "DEL"),
	)

	if len(keys) == 0 {
		return nil
	}
	if err := s.cmd.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: delete: %w", err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *EphemeralStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.ephemeral.exists")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EXISTS"),
	)

	n, err := s.cmd.Exists(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("ephemeral store: exists %q: %w", key, err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of key. Absent keys are
// domain.ErrNotFound.
func (s *EphemeralStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := tracer.Start(ctx, "redis.ephemeral.ttl")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "TTL"),
	)

	ttl, err := s.cmd.TTL(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("ephemeral store: ttl %q: %w", key, err)
	}
	if ttl < 0 {
		// -2 means no key; -1 means no expiry, which no writer here produces.
		return 0, fmt.Errorf("ephemeral store: ttl %q: %w", key, domain.ErrNotFound)
	}
	return ttl, nil
}

// Incr atomically increments the integer at key, creating it at 1.
func (s *EphemeralStore) Incr(ctx context.Context, key string) (int64, error) {
	ctx, span := tracer.Start(ctx, "redis.ephemeral.incr")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "INCR"),
	)

	n, err := s.cmd.Incr(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("ephemeral store: incr %q: %w", key, err)
	}
	return n, nil
}

// Expire sets the TTL on an existing key. Absent keys are domain.ErrNotFound.
func (s *EphemeralStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.ephemeral.expire")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EXPIRE"),
	)

	ok, err := s.cmd.Expire(ctx, key, ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: expire %q: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("ephemeral store: expire %q: %w", key, domain.ErrNotFound)
	}
	return nil
}

// encodeValue picks the wire form for a stored value.
func encodeValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}
