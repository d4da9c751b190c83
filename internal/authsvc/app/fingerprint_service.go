package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/observability"
)

// SessionFanout is the slice of the session manager the fingerprint manager
// needs: revocation fan-out and the active-session join for listings.
type SessionFanout interface {
	RevokeByFingerprint(ctx context.Context, userID, fingerprintID string) error
	ListActive(ctx context.Context, userID string) ([]SessionInfo, error)
}

// FingerprintWithSessions is a trusted fingerprint annotated with its
// currently active sessions.
type FingerprintWithSessions struct {
	FingerprintRecord
	ActiveSessions []SessionInfo
}

// FingerprintServiceConfig holds the dependencies for FingerprintService.
type FingerprintServiceConfig struct {
	Fingerprints FingerprintStore
	Ephemeral    EphemeralStore
	Publisher    EventPublisher
	Sessions     SessionFanout
	Clock        domain.Clock
	Logger       *slog.Logger
}

// FingerprintService owns the device-trust model: fingerprints start
// untrusted, earn trust through the email challenge (or the TOTP-gated
// variant), and lose it only through revocation.
type FingerprintService struct {
	fingerprints FingerprintStore
	ephemeral    EphemeralStore
	publisher    EventPublisher
	sessions     SessionFanout
	clock        domain.Clock
	logger       *slog.Logger
	bgWG         sync.WaitGroup // owns background goroutines (email emits)
}

// NewFingerprintService creates a FingerprintService with the given
// dependencies.
func NewFingerprintService(cfg FingerprintServiceConfig) *FingerprintService {
	return &FingerprintService{
		fingerprints: cfg.Fingerprints,
		ephemeral:    cfg.Ephemeral,
		publisher:    cfg.Publisher,
		sessions:     cfg.Sessions,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
}

// Wait blocks until all background goroutines owned by this service complete.
func (s *FingerprintService) Wait() {
	s.bgWG.Wait()
}

// Check looks up the fingerprint for (userID, hash). The caller decides what
// an untrusted record means for its flow.
func (s *FingerprintService) Check(ctx context.Context, userID, fingerprintHash string) (*FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "fingerprint.check")
	defer span.End()

	record, err := s.fingerprints.Get(ctx, userID, fingerprintHash)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	return record, nil
}

// CreateUntrusted registers a new device as untrusted. Idempotent on
// (userID, hash): repeated calls return the existing record.
func (s *FingerprintService) CreateUntrusted(ctx context.Context, userID, fingerprintHash, browser, device string) (*FingerprintRecord, error) {
	return s.create(ctx, userID, fingerprintHash, browser, device, false)
}

// CreateTrusted registers a device as already trusted, for the paths where
// trust is established out of band (wallet sessions).
func (s *FingerprintService) CreateTrusted(ctx context.Context, userID, fingerprintHash, browser, device string) (*FingerprintRecord, error) {
	return s.create(ctx, userID, fingerprintHash, browser, device, true)
}

func (s *FingerprintService) create(ctx context.Context, userID, fingerprintHash, browser, device string, trusted bool) (*FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "fingerprint.create")
	defer span.End()

	now := domain.NowRFC3339(s.clock)
	record := FingerprintRecord{
		FingerprintID:   domain.GenerateFingerprintID().String(),
		UserID:          userID,
		FingerprintHash: fingerprintHash,
		Browser:         browser,
		Device:          device,
		IsTrusted:       trusted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.fingerprints.Create(ctx, record)
	if err == nil {
		if trusted {
			fingerprintTrustedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("path", "created_trusted")))
		}
		return &record, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create fingerprint: %w", err)
	}

	// Lost the uniqueness race or the device is already known: same record.
	existing, getErr := s.fingerprints.Get(ctx, userID, fingerprintHash)
	if getErr != nil {
		span.RecordError(getErr)
		span.SetStatus(codes.Error, getErr.Error())
		return nil, fmt.Errorf("get existing fingerprint: %w", getErr)
	}
	return existing, nil
}

// Trust flips an existing fingerprint to trusted and returns the updated
// record.
func (s *FingerprintService) Trust(ctx context.Context, userID, fingerprintHash string) (*FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "fingerprint.trust")
	defer span.End()

	record, err := s.fingerprints.Get(ctx, userID, fingerprintHash)
	if err != nil {
		span.SetStatus(codes.Error, "fingerprint not found")
		return nil, err
	}

	if !record.IsTrusted {
		now := domain.NowRFC3339(s.clock)
		if err := s.fingerprints.SetTrusted(ctx, userID, fingerprintHash, true, now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("trust fingerprint: %w", err)
		}
		record.IsTrusted = true
		record.UpdatedAt = now
		fingerprintTrustedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("path", "trusted")))
	}
	return record, nil
}

// TrustByID flips the fingerprint with the given id to trusted, enforcing
// ownership by userID.
func (s *FingerprintService) TrustByID(ctx context.Context, userID, fingerprintID string) (*FingerprintRecord, error) {
	record, err := s.fingerprints.GetByID(ctx, fingerprintID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("fingerprint %s: %w", fingerprintID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get fingerprint: %w", err)
	}
	if record.UserID != userID {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "fingerprint_ownership")))
		return nil, fmt.Errorf("fingerprint %s: %w", fingerprintID, domain.ErrForbidden)
	}
	return s.Trust(ctx, userID, record.FingerprintHash)
}

// EnsureTrusted locates the fingerprint for (userID, hash), creating it
// trusted if absent and trusting it if present but untrusted.
func (s *FingerprintService) EnsureTrusted(ctx context.Context, userID, fingerprintHash, browser, device string) (*FingerprintRecord, error) {
	record, err := s.fingerprints.Get(ctx, userID, fingerprintHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.CreateTrusted(ctx, userID, fingerprintHash, browser, device)
		}
		return nil, fmt.Errorf("get fingerprint: %w", err)
	}
	if record.IsTrusted {
		return record, nil
	}
	return s.Trust(ctx, userID, fingerprintHash)
}

// List returns the user's trusted fingerprints, each annotated with its
// currently active sessions.
func (s *FingerprintService) List(ctx context.Context, userID string) ([]FingerprintWithSessions, error) {
	ctx, span := tracer.Start(ctx, "fingerprint.list")
	defer span.End()

	records, err := s.fingerprints.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}

	active, err := s.sessions.ListActive(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	byFingerprint := make(map[string][]SessionInfo, len(active))
	for _, info := range active {
		byFingerprint[info.DeviceFingerprintID] = append(byFingerprint[info.DeviceFingerprintID], info)
	}

	out := make([]FingerprintWithSessions, 0, len(records))
	for _, record := range records {
		if !record.IsTrusted {
			continue
		}
		out = append(out, FingerprintWithSessions{
			FingerprintRecord: record,
			ActiveSessions:    byFingerprint[record.FingerprintID],
		})
	}
	return out, nil
}

// Revoke flips a fingerprint to untrusted and revokes every session bound to
// it. Revoking an already-untrusted record is a no-op success.
func (s *FingerprintService) Revoke(ctx context.Context, userID, fingerprintID string) error {
	ctx, span := tracer.Start(ctx, "fingerprint.revoke")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	record, err := s.fingerprints.GetByID(ctx, fingerprintID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			span.SetStatus(codes.Error, "fingerprint not found")
			return fmt.Errorf("fingerprint %s: %w", fingerprintID, domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("get fingerprint: %w", err)
	}
	if record.UserID != userID {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "fingerprint_ownership")))
		span.SetStatus(codes.Error, "not fingerprint owner")
		return fmt.Errorf("fingerprint %s: %w", fingerprintID, domain.ErrForbidden)
	}

	if record.IsTrusted {
		if err := s.fingerprints.SetTrusted(ctx, userID, record.FingerprintHash, false, domain.NowRFC3339(s.clock)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("revoke fingerprint: %w", err)
		}
	}

	// Fan-out: every session bound to a revoked device dies with it, even
	// when the trust flag was already down.
	if err := s.sessions.RevokeByFingerprint(ctx, userID, fingerprintID); err != nil {
		return fmt.Errorf("revoke fingerprint sessions: %w", err)
	}

	logger.InfoContext(ctx, "fingerprint.revoked", "user_id", userID, "fingerprint_id", fingerprintID)
	return nil
}
