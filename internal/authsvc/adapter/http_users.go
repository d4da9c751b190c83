package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/domain"
	"github.com/decode-platform/auth-service/internal/token"
)

// Compile-time check: UserDirectoryClient satisfies app.UserDirectory.
var _ app.UserDirectory = (*UserDirectoryClient)(nil)

// httpDoer is a narrow, consumer-defined interface for issuing HTTP requests.
// The real *http.Client satisfies it.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// UserDirectoryClient calls the user-directory sibling over HTTP. Every call
// carries a freshly minted service token; tokens are never cached.
type UserDirectoryClient struct {
	baseURL string
	http    httpDoer
	minter  *token.ServiceMinter
}

// NewUserDirectoryClient creates a client for the user directory at baseURL.
func NewUserDirectoryClient(baseURL string, httpClient httpDoer, minter *token.ServiceMinter) *UserDirectoryClient {
	return &UserDirectoryClient{
		baseURL: baseURL,
		http:    httpClient,
		minter:  minter,
	}
}

// directoryEnvelope is the user-directory response wrapper.
type directoryEnvelope struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// directoryUser is the user payload shape on the wire.
type directoryUser struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	LastLoginAt string `json:"last_login_at"`
	Password    string `json:"password,omitempty"`
}

func (u directoryUser) record() app.UserRecord {
	return app.UserRecord{
		UserID:      u.UserID,
		Email:       u.Email,
		Username:    u.Username,
		Role:        u.Role,
		DisplayName: u.DisplayName,
		LastLoginAt: u.LastLoginAt,
	}
}

// CheckExists reports whether an account with the given email or username
// exists.
func (c *UserDirectoryClient) CheckExists(ctx context.Context, emailOrUsername string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	err := c.call(ctx, http.MethodGet, "/internal/users/exists/"+url.PathEscape(emailOrUsername), nil, &out)
	if err != nil {
		return false, err
	}
	return out.Exists, nil
}

// Create registers a new user in the directory.
func (c *UserDirectoryClient) Create(ctx context.Context, user app.NewUser) (*app.UserRecord, error) {
	body := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{
		Username: user.Username,
		Email:    user.Email,
		Password: user.PasswordHashed,
	}

	var out directoryUser
	if err := c.call(ctx, http.MethodPost, "/internal/users", body, &out); err != nil {
		return nil, err
	}
	record := out.record()
	return &record, nil
}

// ChangePassword replaces the stored password hash for userID.
func (c *UserDirectoryClient) ChangePassword(ctx context.Context, userID, newHash string) error {
	body := struct {
		Password string `json:"password"`
	}{Password: newHash}
	return c.call(ctx, http.MethodPatch, "/internal/users/"+url.PathEscape(userID)+"/password", body, nil)
}

// GetByEmailOrUsername retrieves a user by either identifier.
func (c *UserDirectoryClient) GetByEmailOrUsername(ctx context.Context, emailOrUsername string) (*app.UserRecord, error) {
	var out directoryUser
	err := c.call(ctx, http.MethodGet, "/internal/users/by-identifier/"+url.PathEscape(emailOrUsername), nil, &out)
	if err != nil {
		return nil, err
	}
	record := out.record()
	return &record, nil
}

// GetByID retrieves a user by id.
func (c *UserDirectoryClient) GetByID(ctx context.Context, userID string) (*app.UserRecord, error) {
	var out directoryUser
	if err := c.call(ctx, http.MethodGet, "/internal/users/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	record := out.record()
	return &record, nil
}

// GetWithPasswordByID retrieves a user with the password hash included.
func (c *UserDirectoryClient) GetWithPasswordByID(ctx context.Context, userID string) (*app.UserWithPassword, error) {
	var out directoryUser
	err := c.call(ctx, http.MethodGet, "/internal/users/"+url.PathEscape(userID)+"/credentials", nil, &out)
	if err != nil {
		return nil, err
	}
	return &app.UserWithPassword{UserRecord: out.record(), PasswordHash: out.Password}, nil
}

// GetWithPasswordByEmailOrUsername retrieves a user by either identifier with
// the password hash included.
func (c *UserDirectoryClient) GetWithPasswordByEmailOrUsername(ctx context.Context, emailOrUsername string) (*app.UserWithPassword, error) {
	var out directoryUser
	err := c.call(ctx, http.MethodGet, "/internal/users/by-identifier/"+url.PathEscape(emailOrUsername)+"/credentials", nil, &out)
	if err != nil {
		return nil, err
	}
	return &app.UserWithPassword{UserRecord: out.record(), PasswordHash: out.Password}, nil
}

// UpdateLastLogin stamps the user's last-login time to now, directory-side.
func (c *UserDirectoryClient) UpdateLastLogin(ctx context.Context, userID string) error {
	return c.call(ctx, http.MethodPost, "/internal/users/"+url.PathEscape(userID)+"/last-login", nil, nil)
}

// call performs one authenticated round trip. A nil dest discards the data
// field; a nil body sends no payload.
func (c *UserDirectoryClient) call(ctx context.Context, method, path string, body, dest any) error {
	ctx, span := tracer.Start(ctx, "userdirectory.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("user directory: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("user directory: build request: %w", err)
	}

	serviceToken, _, err := c.minter.Mint()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("user directory: mint service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+serviceToken)
	req.Header.Set("User-Agent", domain.OutboundUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("user directory: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var envelope directoryEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("user directory: decode response: %w", err)
	}

	if !envelope.OK {
		return directoryError(resp.StatusCode, envelope.Message)
	}
	if dest != nil {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			return fmt.Errorf("user directory: decode data: %w", err)
		}
	}
	return nil
}

// directoryError maps a failed envelope onto domain errors by status code.
func directoryError(status int, message string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("user directory: %s: %w", message, domain.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("user directory: %s: %w", message, domain.ErrAlreadyExists)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("user directory: %s: %w", message, domain.ErrUnauthorized)
	default:
		return fmt.Errorf("user directory: %s (status %d)", message, status)
	}
}
