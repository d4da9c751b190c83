package port

import (
	"net/http"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/domain"
)

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *registerRequest) validate() error {
	return requireFields(
		field{"username", h.Username},
		field{"email", h.Email},
		field{"password", h.Password},
	)
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	err := rt.auth.Register(r.Context(), app.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Verification code sent to email", nil)
}

type verifyEmailRequest struct {
	Code string `json:"code"`
}

func (rt *Router) handleVerifyEmailRegister(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"code", req.Code}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	user, err := rt.auth.VerifyEmailRegister(r.Context(), req.Code)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "User created successfully", toUserData(user))
}

// ---------------------------------------------------------------------------
// Login state machine
// ---------------------------------------------------------------------------

type loginRequest struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
	FingerprintHash string `json:"fingerprint_hashed"`
	Browser         string `json:"browser"`
	Device          string `json:"device"`
}

func (h *loginRequest) validate() error {
	return requireFields(
		field{"email_or_username", h.EmailOrUsername},
		field{"password", h.Password},
		field{"fingerprint_hashed", h.FingerprintHash},
	)
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	result, err := rt.auth.Login(r.Context(), app.LoginParams{
		EmailOrUsername: req.EmailOrUsername,
		Password:        req.Password,
		FingerprintHash: req.FingerprintHash,
		Browser:         req.Browser,
		Device:          req.Device,
	})
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	message, data := toLoginResponse(result)
	respondOK(w, message, data)
}

func (rt *Router) handleVerifyDeviceChallenge(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"code", req.Code}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	result, err := rt.auth.VerifyDeviceChallenge(r.Context(), req.Code)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	message, data := toLoginResponse(result)
	respondOK(w, message, data)
}

// ---------------------------------------------------------------------------
// Password reset
// ---------------------------------------------------------------------------

type passwordForgotRequest struct {
	EmailOrUsername string `json:"email_or_username"`
}

func (rt *Router) handlePasswordForgot(w http.ResponseWriter, r *http.Request) {
	var req passwordForgotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"email_or_username", req.EmailOrUsername}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	if err := rt.auth.InitiatePasswordReset(r.Context(), req.EmailOrUsername); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Verification code sent to email", nil)
}

func (rt *Router) handlePasswordVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	if err := requireFields(field{"code", req.Code}); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	if err := rt.auth.VerifyPasswordResetCode(r.Context(), req.Code); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Verification code valid", nil)
}

type passwordChangeRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (rt *Router) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	var req passwordChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	err := requireFields(
		field{"code", req.Code},
		field{"new_password", req.NewPassword},
	)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}

	if err := rt.auth.ChangePassword(r.Context(), req.Code, req.NewPassword); err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "Password changed successfully", nil)
}

// ---------------------------------------------------------------------------
// Authenticated info
// ---------------------------------------------------------------------------

func (rt *Router) handleInfoMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}

	user, err := rt.auth.UserInfo(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, rt.logger, err)
		return
	}
	respondOK(w, "User info", toUserData(user))
}

// handleInfoSession introspects the session the presented access token is
// bound to.
func (rt *Router) handleInfoSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, rt.logger, domain.ErrUnauthorized)
		return
	}
	respondOK(w, "Session info", map[string]string{
		"user_id":    identity.UserID,
		"session_id": identity.SessionID,
	})
}
