package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/decode-platform/auth-service/internal/domain"
)

func TestIsClientError(t *testing.T) {
	clientSide := []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrInvalidCredentials,
		domain.ErrWeakPassword,
		domain.ErrExistingUser,
		domain.ErrInvalidCode,
		domain.ErrDeviceNotTrusted,
		domain.ErrInvalidOTP,
		domain.ErrOTPAlreadySetup,
		domain.ErrUnauthorized,
		domain.ErrForbidden,
	}
	for _, err := range clientSide {
		assert.True(t, domain.IsClientError(err), "expected %v to be a client error", err)
	}

	assert.False(t, domain.IsClientError(domain.ErrUnavailable))
	assert.False(t, domain.IsClientError(errors.New("disk on fire")))
	assert.False(t, domain.IsClientError(nil))
}

func TestIsClientErrorMatchesWrapped(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	assert.True(t, domain.IsClientError(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, domain.IsRetryable(domain.ErrUnavailable))
	assert.False(t, domain.IsRetryable(domain.ErrInvalidOTP))
}

func TestIsPermissionDenied(t *testing.T) {
	assert.True(t, domain.IsPermissionDenied(domain.ErrForbidden))
	assert.True(t, domain.IsPermissionDenied(domain.ErrUnauthorized))
	assert.False(t, domain.IsPermissionDenied(domain.ErrNotFound))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, domain.IsNotFound(fmt.Errorf("get session: %w", domain.ErrNotFound)))
	assert.False(t, domain.IsNotFound(domain.ErrUnauthorized))
}
