package handler

import (
	"net/http"

	"github.com/go-auth-sessions/internal/application/oauth"
	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health-check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "action") == "ping" {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
		return
	}
	writeError(w, http.StatusBadRequest, "unknown action")
}

// OAuthHandler exposes which external identity providers are configured.
type OAuthHandler struct {
	registry *oauth.Registry
}

func NewOAuthHandler(registry *oauth.Registry) *OAuthHandler {
	return &OAuthHandler{registry: registry}
}

func (h *OAuthHandler) Providers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Providers []string `json:"providers"`
	}{Providers: h.registry.Names()})
}
