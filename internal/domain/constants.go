package domain

import "time"

// Token lifetimes. Compiled defaults that can be overridden via configuration.
const (
	// AccessTokenLifetime is the JWT access token validity (short relative to
	// the session it is bound to).
	AccessTokenLifetime = 24 * time.Hour

	// SessionLifetime is the rotating session token validity (30 days).
	SessionLifetime = 30 * 24 * time.Hour

	// ServiceTokenLifetime is the inter-service JWT validity.
	ServiceTokenLifetime = 10 * time.Minute
)

// Ephemeral record TTLs, keyed by cache domain prefix.
const (
	RegisterInfoTTL          = 1 * time.Hour
	EmailVerificationTTL     = 5 * time.Minute
	FingerprintChallengeTTL  = 5 * time.Minute
	ChangePasswordCodeTTL    = 5 * time.Minute
	SSOTokenTTL              = 60 * time.Second
	OTPLoginSessionTTL       = 5 * time.Minute
	OTPFingerprintSessionTTL = 5 * time.Minute
	WalletPassTokenTTL       = 5 * time.Minute
)

// Password engine parameters.
const (
	BcryptCost            = 12
	MinPasswordLength     = 8
	PasswordScoreRequired = 3
	// MaxPasswordSimilarity is the normalized Levenshtein similarity above
	// which a new password is rejected as too close to the old one.
	MaxPasswordSimilarity = 0.7
)

// Opaque code and token shapes.
const (
	// VerificationCodeLength is the length of email/password verification codes.
	VerificationCodeLength = 6

	// OpaqueTokenLength is the length of sso / login-session / wallet-pass
	// carrier tokens.
	OpaqueTokenLength = 32
)

// Timeout contracts for outbound calls.
const (
	DynamoDBTimeout      = 5 * time.Second
	RedisTimeout         = 2 * time.Second
	UserDirectoryTimeout = 10 * time.Second
)

// Graceful shutdown budget.
const (
	ShutdownDrainDelay  = 2 * time.Second
	ShutdownHTTPTimeout = 15 * time.Second
	ShutdownOTELTimeout = 5 * time.Second
)

// Sibling application identifiers.
const (
	// ServiceName is this service's name as carried in inbound service-token
	// claims.
	ServiceName = "auth"

	// WalletServiceName identifies the wallet sibling service (service-token
	// issuer family).
	WalletServiceName = "wallet"

	// UserServiceName identifies the user-directory sibling service.
	UserServiceName = "user"

	// DefaultSessionApp is the app label stamped on sessions created through
	// the regular login paths.
	DefaultSessionApp = "decode"

	// WalletSessionApp is the app label stamped on sessions created through
	// the service-authenticated wallet-session path.
	WalletSessionApp = "decode by wallet"

	// WalletUserAgent is the User-Agent the wallet service presents on the
	// create-wallet-session endpoint.
	WalletUserAgent = "Wallet-Service/1.0"

	// OutboundUserAgent is the User-Agent this service presents to siblings.
	OutboundUserAgent = "Auth-Service/1.0"
)

// Email request types published on the message bus.
const (
	EmailTypeCreateAccount     = "create-account"
	EmailTypeWelcomeMessage    = "welcome-message"
	EmailTypeFingerprintVerify = "fingerprint-verify"
	EmailTypeForgotPassword    = "forgot-password-verify"
)

// Role represents a user role as owned by the user-directory service.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// IsValidRole checks if a role is one this service recognizes.
func IsValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin || r == RoleModerator
}
