package port

import (
	"time"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
)

// sessionData is the wire shape for a freshly created or rotated session.
type sessionData struct {
	SessionID        string    `json:"session_id"`
	SessionToken     string    `json:"session_token"`
	AccessToken      string    `json:"access_token"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
}

func toSessionData(s *app.SessionWithAccess) sessionData {
	return sessionData{
		SessionID:        s.SessionID,
		SessionToken:     s.SessionToken,
		AccessToken:      s.AccessToken,
		SessionExpiresAt: s.SessionExpiresAt,
		AccessExpiresAt:  s.AccessExpiresAt,
	}
}

// userData is the wire shape for a directory profile.
type userData struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	LastLoginAt string `json:"last_login_at,omitempty"`
}

func toUserData(u *app.UserRecord) userData {
	return userData{
		UserID:      u.UserID,
		Email:       u.Email,
		Username:    u.Username,
		Role:        u.Role,
		DisplayName: u.DisplayName,
		LastLoginAt: u.LastLoginAt,
	}
}

// sessionInfoData is the wire shape for one entry in an active-session
// listing. No tokens ever appear here.
type sessionInfoData struct {
	SessionID           string `json:"session_id"`
	DeviceFingerprintID string `json:"device_fingerprint_id"`
	App                 string `json:"app"`
	CreatedAt           string `json:"created_at"`
	LastUsedAt          string `json:"last_used_at"`
	ExpiresAt           string `json:"expires_at"`
}

func toSessionInfoData(sessions []app.SessionInfo) []sessionInfoData {
	out := make([]sessionInfoData, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionInfoData{
			SessionID:           s.SessionID,
			DeviceFingerprintID: s.DeviceFingerprintID,
			App:                 s.App,
			CreatedAt:           s.CreatedAt,
			LastUsedAt:          s.LastUsedAt,
			ExpiresAt:           s.ExpiresAt,
		})
	}
	return out
}

// fingerprintData is the wire shape for one trusted fingerprint, annotated
// with its currently active sessions.
type fingerprintData struct {
	FingerprintID   string            `json:"fingerprint_id"`
	FingerprintHash string            `json:"fingerprint_hashed"`
	Browser         string            `json:"browser"`
	Device          string            `json:"device"`
	IsTrusted       bool              `json:"is_trusted"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
	ActiveSessions  []sessionInfoData `json:"active_sessions"`
}

func toFingerprintData(fingerprints []app.FingerprintWithSessions) []fingerprintData {
	out := make([]fingerprintData, 0, len(fingerprints))
	for _, fp := range fingerprints {
		out = append(out, fingerprintData{
			FingerprintID:   fp.FingerprintID,
			FingerprintHash: fp.FingerprintHash,
			Browser:         fp.Browser,
			Device:          fp.Device,
			IsTrusted:       fp.IsTrusted,
			CreatedAt:       fp.CreatedAt,
			UpdatedAt:       fp.UpdatedAt,
			ActiveSessions:  toSessionInfoData(fp.ActiveSessions),
		})
	}
	return out
}

// loginData is the wire shape for the three login outcomes. Exactly one of
// the session fields or LoginSessionToken is populated.
type loginData struct {
	SessionID         string     `json:"session_id,omitempty"`
	SessionToken      string     `json:"session_token,omitempty"`
	AccessToken       string     `json:"access_token,omitempty"`
	SessionExpiresAt  *time.Time `json:"session_expires_at,omitempty"`
	AccessExpiresAt   *time.Time `json:"access_expires_at,omitempty"`
	LoginSessionToken string     `json:"login_session_token,omitempty"`
	User              *userData  `json:"user,omitempty"`
}

// loginMessages maps login outcomes to the envelope message.
var loginMessages = map[app.LoginStatus]string{
	app.LoginSessionCreated:             "Login successful",
	app.LoginOtpRequired:                "OTP required",
	app.LoginDeviceVerificationRequired: "Device fingerprint not trusted, send email verification",
}

// toLoginResponse flattens a LoginResult into envelope message + data.
func toLoginResponse(result *app.LoginResult) (string, loginData) {
	data := loginData{LoginSessionToken: result.LoginSessionToken}
	if result.Session != nil {
		data.SessionID = result.Session.SessionID
		data.SessionToken = result.Session.SessionToken
		data.AccessToken = result.Session.AccessToken
		data.SessionExpiresAt = &result.Session.SessionExpiresAt
		data.AccessExpiresAt = &result.Session.AccessExpiresAt
	}
	if result.User != nil {
		u := toUserData(result.User)
		data.User = &u
	}
	return loginMessages[result.Status], data
}
