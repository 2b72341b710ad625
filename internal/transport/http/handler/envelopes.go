package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-auth-sessions/internal/application/auth"
	"github.com/go-auth-sessions/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TokenPair is the token part of an authenticated response.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthEnvelope wraps register/login/refresh/2FA-login responses. A login that
// needs a second factor carries only RequiresTwoFactor and TempToken.
type AuthEnvelope struct {
	Message           string          `json:"message,omitempty"`
	User              *domain.Account `json:"user,omitempty"`
	Tokens            *TokenPair      `json:"tokens,omitempty"`
	SessionID         string          `json:"session_id,omitempty"`
	RequiresTwoFactor bool            `json:"requires_two_factor,omitempty"`
	TempToken         string          `json:"temp_token,omitempty"`
}

type ProfileEnvelope struct {
	User *domain.Account `json:"user"`
}

type ValidateEnvelope struct {
	Message string `json:"message"`
	Valid   bool   `json:"valid"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
}

type SessionsEnvelope struct {
	Sessions []domain.Session `json:"sessions"`
}

type TwoFactorSetupEnvelope struct {
	Message    string `json:"message"`
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

type BackupCodesEnvelope struct {
	Message     string   `json:"message"`
	BackupCodes []string `json:"backup_codes"`
}

func authEnvelope(msg string, res *auth.AuthResult) AuthEnvelope {
	return AuthEnvelope{
		Message: msg,
		User:    res.Account,
		Tokens: &TokenPair{
			AccessToken:      res.AccessToken,
			RefreshToken:     res.RefreshToken,
			RefreshExpiresAt: res.RefreshExpiresAt,
		},
		SessionID: res.SessionID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain sentinels to status codes. Internal failures get a
// generic message; the cause is logged.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInternal):
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, domain.ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
