package handler

import (
	"net/http"

	"github.com/go-auth-sessions/internal/application/auth"
	"github.com/go-auth-sessions/internal/transport/http/middleware"
)

func (h *AuthHandler) Enable2FA(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	setup, err := h.svc.Enable2FA(r.Context(), claims.AccountID())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TwoFactorSetupEnvelope{
		Message:    "Scan the QR code with your authenticator app, then confirm with a code",
		Secret:     setup.Secret,
		OTPAuthURL: setup.OTPAuthURL,
		QRCode:     setup.QRCode,
	})
}

// Verify2FASetup confirms the pending secret for the authenticated account.
// The code may arrive as "code" or, from older clients, as "temp_token".
func (h *AuthHandler) Verify2FASetup(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body struct {
		Code      string `json:"code"`
		TempToken string `json:"temp_token"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	code := body.Code
	if code == "" {
		code = body.TempToken
	}
	codes, err := h.svc.Verify2FASetup(r.Context(), auth.Verify2FASetupRequest{Email: claims.Email, Code: code})
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BackupCodesEnvelope{
		Message:     "Two-factor authentication enabled. Store these backup codes somewhere safe.",
		BackupCodes: codes,
	})
}

func (h *AuthHandler) Disable2FA(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Disable2FA(r.Context(), claims.AccountID(), body.Code); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Two-factor authentication disabled"})
}

// Validate2FALogin completes a login that was answered with a temp token.
func (h *AuthHandler) Validate2FALogin(w http.ResponseWriter, r *http.Request) {
	var req auth.Validate2FARequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.IP = middleware.ClientIP(r)
	req.UserAgent = r.UserAgent()
	res, err := h.svc.Validate2FALogin(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.cookies.setAuthCookies(w, res, h.now())
	writeJSON(w, http.StatusOK, authEnvelope("Login successful", res))
}
