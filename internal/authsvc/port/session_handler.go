package port

import (
	"fmt"
	"net/http"

	"github.com/decode-platform/auth-service/internal/domain"
)

type sessionTokenRequest struct {
	SessionToken string `json:"session_token"`
}

func (rt *Router) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	var req sessionTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"session_token", req.SessionToken}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	session, err := rt.sessions.Refresh(r.Context(), req.SessionToken)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Session refreshed", toSessionData(session))
}

func (rt *Router) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	var req sessionTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"session_token", req.SessionToken}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	if err := rt.sessions.Logout(r.Context(), req.SessionToken); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Logged out", nil)
}

func (rt *Router) handleSessionsActive(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	sessions, err := rt.sessions.ListActive(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Active sessions", map[string]any{"sessions": toSessionInfoData(sessions)})
}

type sessionRevokeRequest struct {
	SessionID string `json:"session_id"`
}

func (rt *Router) handleSessionRevoke(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	var req sessionRevokeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"session_id", req.SessionID}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	if err := rt.sessions.RevokeByID(r.Context(), identity.UserID, req.SessionID); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Session revoked", nil)
}

func (rt *Router) handleSessionCleanup(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	cleaned, err := rt.sessions.CleanupExpired(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Expired sessions cleaned up", map[string]int{"revoked": cleaned})
}

type walletSessionRequest struct {
	WalletPassToken string `json:"wallet_pass_token"`
}

// handleCreateWalletSession sits behind the service-token guard; the app
// layer additionally checks the caller's User-Agent against the wallet
// sibling's expected value.
func (rt *Router) handleCreateWalletSession(w http.ResponseWriter, r *http.Request) {
	var req walletSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"wallet_pass_token", req.WalletPassToken}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	session, err := rt.sessions.CreateWalletSession(r.Context(), req.WalletPassToken, r.UserAgent())
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Wallet session created", toSessionData(session))
}

// ---------------------------------------------------------------------------
// Device fingerprints
// ---------------------------------------------------------------------------

func (rt *Router) handleFingerprintList(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	fingerprints, err := rt.fingerprints.List(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Trusted fingerprints", map[string]any{"fingerprints": toFingerprintData(fingerprints)})
}

type fingerprintRevokeRequest struct {
	FingerprintID string `json:"fingerprint_id"`
}

func (rt *Router) handleFingerprintRevoke(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	var req fingerprintRevokeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"fingerprint_id", req.FingerprintID}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	if err := rt.fingerprints.Revoke(r.Context(), identity.UserID, req.FingerprintID); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Fingerprint revoked", nil)
}

// ---------------------------------------------------------------------------
// SSO handoff
// ---------------------------------------------------------------------------

type ssoCreateRequest struct {
	App             string `json:"app"`
	FingerprintHash string `json:"fingerprint_hashed"`

	// UserID is accepted for compatibility but must match the authenticated
	// principal when present.
	UserID string `json:"user_id"`
}

func (rt *Router) handleSSOCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	var req ssoCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	err := requireFields(
		field{"app", req.App},
		field{"fingerprint_hashed", req.FingerprintHash},
	)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if req.UserID != "" && req.UserID != identity.UserID {
		respondError(w, r, rt.logger, fmt.Errorf("user_id does not match principal: %w", domain.ErrForbidden))
		return
	}

	ssoToken, err := rt.sso.Create(r.Context(), identity.UserID, req.App, req.FingerprintHash)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "SSO token created", map[string]string{"sso_token": ssoToken})
}

type ssoValidateRequest struct {
	SSOToken string `json:"sso_token"`
}

func (rt *Router) handleSSOValidate(w http.ResponseWriter, r *http.Request) {
	var req ssoValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"sso_token", req.SSOToken}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	session, err := rt.sso.Validate(r.Context(), req.SSOToken)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "SSO token validated", toSessionData(session))
}
