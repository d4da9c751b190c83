// Package errmap converts domain errors into transport-level error shapes.
// Handlers never inspect domain errors directly; they pass them here.
package errmap

import (
	"errors"
	"net/http"

	"github.com/decode-platform/auth-service/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// httpMapping defines a domain error to HTTP status/code mapping.
type httpMapping struct {
	err        error
	statusCode int
	code       string
}

// httpMappings maps domain errors to HTTP status codes and error codes.
// Order matters: first match wins (via errors.Is).
var httpMappings = []httpMapping{
	// Client errors — 400. Login and two-factor failures deliberately share
	// the 400 class so the response shape does not reveal which check failed.
	{domain.ErrInvalidCredentials, http.StatusBadRequest, "INVALID_CREDENTIALS"},
	{domain.ErrWeakPassword, http.StatusBadRequest, "WEAK_PASSWORD"},
	{domain.ErrPasswordTooSimilar, http.StatusBadRequest, "PASSWORD_TOO_SIMILAR"},
	{domain.ErrExistingUser, http.StatusBadRequest, "EXISTING_USER"},
	{domain.ErrInvalidCode, http.StatusBadRequest, "INVALID_CODE"},
	{domain.ErrDeviceNotTrusted, http.StatusBadRequest, "DEVICE_NOT_TRUSTED"},
	{domain.ErrInvalidOTP, http.StatusBadRequest, "INVALID_OTP"},
	{domain.ErrOTPNotConfigured, http.StatusBadRequest, "OTP_NOT_CONFIGURED"},
	{domain.ErrOTPNotEnabled, http.StatusBadRequest, "OTP_NOT_ENABLED"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrEmptyID, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrInvalidID, http.StatusBadRequest, "INVALID_ARGUMENT"},

	// Auth errors — 401
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHENTICATED"},

	// Permission errors, 403. Re-running a one-shot setup is treated as a
	// permission problem rather than a validation problem.
	{domain.ErrForbidden, http.StatusForbidden, "PERMISSION_DENIED"},
	{domain.ErrOTPAlreadySetup, http.StatusForbidden, "OTP_ALREADY_SETUP"},

	// Resource errors
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},

	// Availability
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
}

// ToHTTPError converts a domain error to an HTTP error.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.statusCode, Code: m.code, Message: err.Error()}
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}
