package handler

import (
	"net/http"
	"time"

	"github.com/go-auth-sessions/internal/application/auth"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieConfig controls the auth cookies set alongside JSON token responses.
type CookieConfig struct {
	Secure    bool
	Domain    string
	AccessTTL time.Duration
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) setAuthCookies(w http.ResponseWriter, res *auth.AuthResult, now time.Time) {
	accessTTL := c.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	http.SetCookie(w, c.cookie(AccessTokenCookie, res.AccessToken, int(accessTTL.Seconds())))
	refreshAge := int(res.RefreshExpiresAt.Sub(now).Seconds())
	if refreshAge < 1 {
		refreshAge = 1
	}
	http.SetCookie(w, c.cookie(RefreshTokenCookie, res.RefreshToken, refreshAge))
}

func (c CookieConfig) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, "", -1))
}

// refreshTokenFrom prefers the body value and falls back to the cookie.
func refreshTokenFrom(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if ck, err := r.Cookie(RefreshTokenCookie); err == nil {
		return ck.Value
	}
	return ""
}
