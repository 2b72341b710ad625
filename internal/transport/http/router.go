package http

import (
	"net/http"

	"github.com/go-auth-sessions/internal/application/oauth"
	"github.com/go-auth-sessions/internal/config"
	"github.com/go-auth-sessions/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-sessions/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. The returned stop
// function releases the rate limiter's background goroutine.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, func()) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RealIP(cfg.TrustedProxies))
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Verifier)

	// 5 requests/second, burst of 10, on credential-accepting public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	registry := deps.OAuth
	if registry == nil {
		registry = oauth.DefaultRegistry()
	}

	healthH := handler.NewHealthHandler()
	oauthH := handler.NewOAuthHandler(registry)
	authH := handler.NewAuthHandler(deps.Auth, handler.CookieConfig{
		Secure:    cfg.CookieSecure,
		Domain:    cfg.CookieDomain,
		AccessTTL: cfg.Auth.AccessTokenTTL,
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/auth", func(r chi.Router) {
			// ── Public routes ────────────────────────────────────────────────
			r.With(sensitiveRL.Limit).Post("/register", authH.Register)
			r.With(sensitiveRL.Limit).Post("/login", authH.Login)
			r.Post("/refresh", authH.Refresh)
			r.Post("/logout", authH.Logout)
			r.Post("/verify-email", authH.VerifyEmail)
			r.With(sensitiveRL.Limit).Post("/forgot-password", authH.ForgotPassword)
			r.With(sensitiveRL.Limit).Post("/reset-password", authH.ResetPassword)
			r.With(sensitiveRL.Limit).Post("/2fa/validate", authH.Validate2FALogin)
			r.Get("/oauth/providers", oauthH.Providers)

			// ── Authenticated routes ─────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(authMw)

				r.Get("/profile", authH.Profile)
				r.Get("/validate", authH.Validate)
				r.Post("/logout-all", authH.LogoutAll)
				r.Get("/sessions", authH.ListSessions)
				r.Delete("/sessions/{id}", authH.RevokeSession)
				r.Post("/resend-verification", authH.ResendVerification)
				r.Post("/change-password", authH.ChangePassword)
				r.Post("/2fa/enable", authH.Enable2FA)
				r.Post("/2fa/verify", authH.Verify2FASetup)
				r.Post("/2fa/disable", authH.Disable2FA)
			})
		})
	})

	return r, sensitiveRL.Stop
}
