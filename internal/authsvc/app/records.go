package app

// Records in this file mirror the document-store and cache shapes the auth
// flows operate on. Adapter packages define their own storage structs and
// convert at the boundary.

// SessionRecord is a session as stored in the sessions table. SessionToken is
// the primary key; rotation replaces the whole record under a new token.
type SessionRecord struct {
	SessionID           string
	UserID              string
	DeviceFingerprintID string
	SessionToken        string
	App                 string
	CreatedAt           string
	LastUsedAt          string
	ExpiresAt           string
	IsActive            bool
	RevokedAt           string
	TTL                 int64
}

// FingerprintRecord is a device fingerprint as stored in the
// device_fingerprints table. (UserID, FingerprintHash) identifies at most one
// record; revocation flips IsTrusted, records are never deleted.
type FingerprintRecord struct {
	FingerprintID   string
	UserID          string
	FingerprintHash string
	Browser         string
	Device          string
	IsTrusted       bool
	CreatedAt       string
	UpdatedAt       string
}

// OtpConfigRecord is a user's TOTP configuration. At most one per user. The
// secret is stored sealed (AES-256-GCM under the service passphrase); Enabled
// gates whether login requires the second factor.
type OtpConfigRecord struct {
	UserID       string
	SecretSealed string
	Enabled      bool
	CreatedAt    string
	UpdatedAt    string
}

// UserRecord is a user as returned by the user-directory service. This
// service only reads users and requests updates.
type UserRecord struct {
	UserID      string
	Email       string
	Username    string
	Role        string
	DisplayName string
	LastLoginAt string
}

// UserWithPassword extends UserRecord with the stored password hash, for the
// credential-check paths only.
type UserWithPassword struct {
	UserRecord
	PasswordHash string
}

// NewUser holds the inputs for creating a user in the directory.
type NewUser struct {
	Username       string
	Email          string
	PasswordHashed string
}

// ---------------------------------------------------------------------------
// Ephemeral payloads. One struct per cache key template; all JSON-serialized
// by the ephemeral store.
// ---------------------------------------------------------------------------

// RegisterInfo is the pending registration stashed until email verification.
type RegisterInfo struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	PasswordHashed string `json:"password_hashed"`
}

// EmailVerification binds a registration verification code to an email.
type EmailVerification struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// FingerprintChallenge is the pending device-trust email challenge.
type FingerprintChallenge struct {
	UserID          string `json:"user_id"`
	FingerprintHash string `json:"fingerprint_hashed"`
}

// ChangePasswordCode is the pending password-reset verification.
type ChangePasswordCode struct {
	UserID           string `json:"user_id"`
	VerificationCode string `json:"verification_code"`
}

// SSOGrant is a single-use cross-app handoff captured at creation time.
type SSOGrant struct {
	UserID              string `json:"user_id"`
	App                 string `json:"app"`
	DeviceFingerprintID string `json:"device_fingerprint_id"`
}

// OtpLoginSession carries "password and device already verified" state across
// the TOTP login gate.
type OtpLoginSession struct {
	UserID              string `json:"user_id"`
	DeviceFingerprintID string `json:"device_fingerprint_id"`
	Browser             string `json:"browser"`
	Device              string `json:"device"`
	App                 string `json:"app"`
}

// OtpFingerprintSession carries the pending trust-this-device decision across
// the TOTP gate.
type OtpFingerprintSession struct {
	UserID              string `json:"user_id"`
	DeviceFingerprintID string `json:"device_fingerprint_id"`
}

// WalletPass is the payload the wallet sibling stashes before requesting a
// wallet-bound session.
type WalletPass struct {
	UserID          string `json:"user_id"`
	FingerprintHash string `json:"fingerprint_hashed"`
	Browser         string `json:"browser"`
	Device          string `json:"device"`
}

// Cache key templates. Each flow owns its prefix.
func registerInfoKey(email string) string     { return "register_info:" + email }
func emailVerificationKey(code string) string { return "email_verification_code:" + code }
func fingerprintChallengeKey(code string) string {
	return "fingerprint-email-verification:" + code
}
func changePasswordKey(code string) string { return "change_password_verification_code:" + code }
func ssoKey(token string) string           { return "sso:" + token }
func otpLoginKey(token string) string      { return "otp_login_session:" + token }
func otpFingerprintKey(token string) string {
	return "otp_verify_fingerprint_session:" + token
}
func walletPassKey(token string) string { return "wallet_pass_token:" + token }
