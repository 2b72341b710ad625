package handler

import (
	"net/http"
	"time"

	"github.com/go-auth-sessions/internal/application/auth"
	"github.com/go-auth-sessions/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// AuthHandler handles the /v1/auth endpoints.
type AuthHandler struct {
	svc     auth.Service
	cookies CookieConfig
	now     func() time.Time
}

func NewAuthHandler(svc auth.Service, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies, now: time.Now}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.IP = middleware.ClientIP(r)
	req.UserAgent = r.UserAgent()
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.cookies.setAuthCookies(w, res, h.now())
	writeJSON(w, http.StatusCreated, authEnvelope("Registration successful. Please check your email to verify your account.", res))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.IP = middleware.ClientIP(r)
	req.UserAgent = r.UserAgent()
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	if res.RequiresTwoFactor {
		writeJSON(w, http.StatusOK, AuthEnvelope{
			Message:           "Two-factor authentication required",
			RequiresTwoFactor: true,
			TempToken:         res.TempToken,
		})
		return
	}
	h.cookies.setAuthCookies(w, res.AuthResult, h.now())
	writeJSON(w, http.StatusOK, authEnvelope("Login successful", res.AuthResult))
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tok := refreshTokenFrom(r, body.RefreshToken)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}
	res, err := h.svc.Refresh(r.Context(), tok)
	if err != nil {
		h.cookies.clearAuthCookies(w)
		httpError(w, r, err)
		return
	}
	h.cookies.setAuthCookies(w, res, h.now())
	writeJSON(w, http.StatusOK, authEnvelope("Tokens refreshed", res))
}

// Logout always succeeds; an unknown or missing token only clears cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	_ = decode(r, &body)
	if tok := refreshTokenFrom(r, body.RefreshToken); tok != "" {
		h.svc.Logout(r.Context(), tok)
	}
	h.cookies.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Logged out successfully"})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.LogoutAll(r.Context(), claims.AccountID()); err != nil {
		httpError(w, r, err)
		return
	}
	h.cookies.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Logged out from all devices"})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	a, err := h.svc.Profile(r.Context(), claims.AccountID())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{User: a})
}

// Validate answers 200 for any request that got past the auth middleware.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, ValidateEnvelope{
		Message: "Token is valid",
		Valid:   true,
		UserID:  claims.AccountID(),
		Email:   claims.Email,
	})
}

func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessions, err := h.svc.ListSessions(r.Context(), claims.AccountID())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionsEnvelope{Sessions: sessions})
}

func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.RevokeSession(r.Context(), claims.AccountID(), chi.URLParam(r, "id")); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Session revoked"})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Token == "" {
		body.Token = r.URL.Query().Get("token")
	}
	if err := h.svc.VerifyEmail(r.Context(), body.Token); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Email verified successfully"})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.ResendVerification(r.Context(), claims.AccountID()); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Verification email sent"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgotPasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "If an account exists with this email, a password reset link has been sent."})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	h.cookies.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password reset successfully. Please log in with your new password."})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req auth.ChangePasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.AccountID(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password changed successfully"})
}
