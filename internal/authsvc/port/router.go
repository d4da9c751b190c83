package port

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/token"
)

// Narrow, consumer-defined interfaces for the app services the handlers
// require. The concrete *app.* services satisfy them.

type authService interface {
	Register(ctx context.Context, params app.RegisterParams) error
	VerifyEmailRegister(ctx context.Context, code string) (*app.UserRecord, error)
	Login(ctx context.Context, params app.LoginParams) (*app.LoginResult, error)
	VerifyDeviceChallenge(ctx context.Context, code string) (*app.LoginResult, error)
	LoginVerifyOTP(ctx context.Context, loginSessionToken, otpCode string) (*app.LoginResult, error)
	FingerprintTrustVerifyOTP(ctx context.Context, fingerprintSessionToken, otpCode string) (*app.LoginResult, error)
	InitiatePasswordReset(ctx context.Context, emailOrUsername string) error
	VerifyPasswordResetCode(ctx context.Context, code string) error
	ChangePassword(ctx context.Context, code, newPassword string) error
	UserInfo(ctx context.Context, userID string) (*app.UserRecord, error)
}

type sessionService interface {
	Refresh(ctx context.Context, sessionToken string) (*app.SessionWithAccess, error)
	Logout(ctx context.Context, sessionToken string) error
	RevokeByID(ctx context.Context, userID, sessionID string) error
	ListActive(ctx context.Context, userID string) ([]app.SessionInfo, error)
	CleanupExpired(ctx context.Context, userID string) (int, error)
	ValidateAccess(ctx context.Context, accessToken string) (*app.Identity, error)
	CreateWalletSession(ctx context.Context, walletPassToken, userAgent string) (*app.SessionWithAccess, error)
}

type fingerprintService interface {
	List(ctx context.Context, userID string) ([]app.FingerprintWithSessions, error)
	Revoke(ctx context.Context, userID, fingerprintID string) error
}

type totpService interface {
	Setup(ctx context.Context, userID, accountName string) (*app.TOTPSetup, error)
	Enable(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID string) error
	Verify(ctx context.Context, userID, code string) error
	Status(ctx context.Context, userID string) (*app.TOTPStatus, error)
}

type ssoService interface {
	Create(ctx context.Context, userID, targetApp, fingerprintHash string) (string, error)
	Validate(ctx context.Context, ssoToken string) (*app.SessionWithAccess, error)
}

// serviceVerifier verifies inbound sibling-service tokens.
type serviceVerifier interface {
	Verify(tokenString string) (*token.ServiceClaims, error)
}

// RouterConfig holds the dependencies for the HTTP surface.
type RouterConfig struct {
	Auth         authService
	Sessions     sessionService
	Fingerprints fingerprintService
	TOTP         totpService
	SSO          ssoService
	Wallet       serviceVerifier
	Logger       *slog.Logger
}

// Router owns the route table and the auth guards in front of it.
type Router struct {
	auth         authService
	sessions     sessionService
	fingerprints fingerprintService
	totp         totpService
	sso          ssoService
	wallet       serviceVerifier
	logger       *slog.Logger
}

// NewRouter creates a Router with the given dependencies.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		auth:         cfg.Auth,
		sessions:     cfg.Sessions,
		fingerprints: cfg.Fingerprints,
		totp:         cfg.TOTP,
		sso:          cfg.SSO,
		wallet:       cfg.Wallet,
		logger:       cfg.Logger,
	}
}

// Routes builds the HTTP handler for the full auth surface. Unauthenticated
// flow endpoints, Bearer-access endpoints, and the service-token endpoint are
// all registered here; method mismatches fall through to the mux's 405.
func (rt *Router) Routes() http.Handler {
	mux := http.NewServeMux()

	// Registration
	mux.HandleFunc("POST /auth/register/email-verification", rt.handleRegister)
	mux.HandleFunc("POST /auth/register/verify-email", rt.handleVerifyEmailRegister)

	// Login state machine
	mux.HandleFunc("POST /auth/login", rt.handleLogin)
	mux.HandleFunc("POST /auth/login/fingerprint/email-verification", rt.handleVerifyDeviceChallenge)

	// Two-factor gates and lifecycle
	mux.HandleFunc("POST /auth/2fa/login", rt.handleLoginVerifyOTP)
	mux.HandleFunc("POST /auth/2fa/fingerprint", rt.handleFingerprintTrustVerifyOTP)
	mux.HandleFunc("POST /auth/2fa/setup", rt.requireAccess(rt.handleTOTPSetup))
	mux.HandleFunc("POST /auth/2fa/enable", rt.requireAccess(rt.handleTOTPEnable))
	mux.HandleFunc("POST /auth/2fa/disable", rt.requireAccess(rt.handleTOTPDisable))
	mux.HandleFunc("POST /auth/2fa/verify", rt.requireAccess(rt.handleTOTPVerify))
	mux.HandleFunc("GET /auth/2fa/status", rt.requireAccess(rt.handleTOTPStatus))

	// Sessions
	mux.HandleFunc("POST /auth/session/refresh", rt.handleSessionRefresh)
	mux.HandleFunc("POST /auth/session/logout", rt.handleSessionLogout)
	mux.HandleFunc("POST /auth/session/active", rt.requireAccess(rt.handleSessionsActive))
	mux.HandleFunc("POST /auth/session/revoke", rt.requireAccess(rt.handleSessionRevoke))
	mux.HandleFunc("POST /auth/session/cleanup", rt.requireAccess(rt.handleSessionCleanup))
	mux.HandleFunc("POST /auth/services/session/create-wallet-session", rt.requireService(rt.handleCreateWalletSession))

	// Device fingerprints
	mux.HandleFunc("GET /auth/fingerprints", rt.requireAccess(rt.handleFingerprintList))
	mux.HandleFunc("POST /auth/fingerprints/revoke", rt.requireAccess(rt.handleFingerprintRevoke))

	// SSO handoff
	mux.HandleFunc("POST /auth/sso/create", rt.requireAccess(rt.handleSSOCreate))
	mux.HandleFunc("POST /auth/sso/validate", rt.handleSSOValidate)

	// Password reset
	mux.HandleFunc("POST /auth/password/forgot", rt.handlePasswordForgot)
	mux.HandleFunc("POST /auth/password/verify", rt.handlePasswordVerify)
	mux.HandleFunc("POST /auth/password/change", rt.handlePasswordChange)

	// Authenticated info
	mux.HandleFunc("GET /auth/info/me", rt.requireAccess(rt.handleInfoMe))
	mux.HandleFunc("GET /auth/info/session", rt.requireAccess(rt.handleInfoSession))

	mux.HandleFunc("GET /auth/healthz", rt.handleHealthz)

	return mux
}

func (rt *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, "healthy", nil)
}
