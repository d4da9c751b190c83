// Package port exposes the auth service over JSON HTTP. Handlers decode and
// validate one request struct, call one app operation, and write the uniform
// response envelope; domain errors are mapped by errmap and never inspected
// here.
package port

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/errmap"
	"github.com/decode-platform/auth-service/internal/observability"
)

// maxBodyBytes bounds request bodies; every input this API accepts is small.
const maxBodyBytes = 1 << 16

// Envelope is the uniform response shape for every endpoint.
type Envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Error      any    `json:"error,omitempty"`
}

// respondOK writes a success envelope.
func respondOK(w http.ResponseWriter, message string, data any) {
	writeEnvelope(w, Envelope{
		Success:    true,
		StatusCode: http.StatusOK,
		Message:    message,
		Data:       data,
	})
}

// respondError maps a domain error onto the envelope. The underlying error is
// logged with the trace identifier; clients only ever see the mapped shape.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	httpErr := errmap.ToHTTPError(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		observability.WithTraceID(r.Context(), logger).ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeEnvelope(w, Envelope{
		Success:    false,
		StatusCode: httpErr.StatusCode,
		Message:    httpErr.Message,
		Error:      httpErr.Code,
	})
}

func writeEnvelope(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	// Encoding the envelope cannot fail for the payload shapes this API
	// produces; a broken connection is the client's problem.
	_ = json.NewEncoder(w).Encode(env)
}

// decodeJSON decodes the request body into dst, rejecting unknown fields and
// trailing garbage. All failures surface as domain.ErrInvalidInput.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing request body", domain.ErrInvalidInput)
	}
	return nil
}

// field pairs a request field name with its value for required-field checks.
type field struct {
	name  string
	value string
}

// requireFields reports the first empty required field as ErrInvalidInput.
func requireFields(fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, f.name)
		}
	}
	return nil
}
