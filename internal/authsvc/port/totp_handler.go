package port

import (
	"net/http"

	"github.com/decode-platform/auth-service/internal/domain"
)

// handleTOTPSetup provisions a fresh TOTP secret for the authenticated user.
// The response is the only place the plaintext secret ever appears.
func (rt *Router) handleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	// The authenticator account label is the user's email.
	user, err := rt.auth.UserInfo(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	setup, err := rt.totp.Setup(r.Context(), identity.UserID, user.Email)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "TOTP secret provisioned", map[string]string{
		"secret":      setup.Secret,
		"otpauth_url": setup.OtpauthURL,
	})
}

type otpCodeRequest struct {
	OTP string `json:"otp"`
}

func (rt *Router) handleTOTPEnable(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	var req otpCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"otp", req.OTP}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	if err := rt.totp.Enable(r.Context(), identity.UserID, req.OTP); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "TOTP enabled", nil)
}

func (rt *Router) handleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	if err := rt.totp.Disable(r.Context(), identity.UserID); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "TOTP disabled", nil)
}

func (rt *Router) handleTOTPVerify(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	var req otpCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"otp", req.OTP}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	if err := rt.totp.Verify(r.Context(), identity.UserID, req.OTP); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "OTP valid", nil)
}

func (rt *Router) handleTOTPStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	status, err := rt.totp.Status(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "TOTP status", map[string]bool{
		"configured": status.Configured,
		"enabled":    status.Enabled,
	})
}

// ---------------------------------------------------------------------------
// Two-factor gate redemptions (unauthenticated; the opaque tokens carry the
// already-verified state)
// ---------------------------------------------------------------------------

type otpLoginRequest struct {
	LoginSessionToken string `json:"login_session_token"`
	OTP               string `json:"otp"`
}

func (rt *Router) handleLoginVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	err := requireFields(
		field{"login_session_token", req.LoginSessionToken},
		field{"otp", req.OTP},
	)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	result, err := rt.auth.LoginVerifyOTP(r.Context(), req.LoginSessionToken, req.OTP)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	message, data := toLoginResponse(result)
	respondOK(w, message, data)
}

type otpFingerprintRequest struct {
	FingerprintSessionToken string `json:"fingerprint_session_token"`
	OTP                     string `json:"otp"`
}

func (rt *Router) handleFingerprintTrustVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpFingerprintRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	err := requireFields(
		field{"fingerprint_session_token", req.FingerprintSessionToken},
		field{"otp", req.OTP},
	)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	result, err := rt.auth.FingerprintTrustVerifyOTP(r.Context(), req.FingerprintSessionToken, req.OTP)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	message, data := toLoginResponse(result)
	respondOK(w, message, data)
}
