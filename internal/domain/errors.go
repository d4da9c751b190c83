package domain

import "errors"

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// ID validation errors
	ErrEmptyID   = errors.New("ID cannot be empty")
	ErrInvalidID = errors.New("invalid ID format")

	// Resource errors
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")

	// Credential errors
	ErrInvalidCredentials = errors.New("invalid email/username or password")
	ErrWeakPassword       = errors.New("password does not meet strength requirements")
	ErrPasswordTooSimilar = errors.New("new password is too similar to the current password")
	ErrExistingUser       = errors.New("email or username already registered")

	// Challenge errors
	ErrInvalidCode      = errors.New("invalid or expired verification code")
	ErrDeviceNotTrusted = errors.New("device fingerprint not trusted")
	ErrInvalidOTP       = errors.New("invalid OTP")
	ErrOTPNotConfigured = errors.New("OTP is not configured for this user")
	ErrOTPNotEnabled    = errors.New("OTP is not enabled for this user")
	ErrOTPAlreadySetup  = errors.New("OTP is already configured for this user")

	// Authorization errors
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("permission denied")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Operational errors
	ErrUnavailable = errors.New("service temporarily unavailable")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// clientErrors enumerates all domain errors that represent client-side issues.
var clientErrors = []error{
	ErrInvalidInput,
	ErrNotFound,
	ErrAlreadyExists,
	ErrForbidden,
	ErrUnauthorized,
	ErrEmptyID,
	ErrInvalidID,
	ErrInvalidCredentials,
	ErrWeakPassword,
	ErrPasswordTooSimilar,
	ErrExistingUser,
	ErrInvalidCode,
	ErrDeviceNotTrusted,
	ErrInvalidOTP,
	ErrOTPNotConfigured,
	ErrOTPNotEnabled,
	ErrOTPAlreadySetup,
}

// IsClientError returns true if the error represents a client-side issue
// that will not succeed on retry without client-side changes.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsPermissionDenied returns true if the error represents a permission issue.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized)
}

// IsNotFound returns true if the error represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
