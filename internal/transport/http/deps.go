package http

import (
	"github.com/go-auth-sessions/internal/application/auth"
	"github.com/go-auth-sessions/internal/application/oauth"
	"github.com/go-auth-sessions/internal/transport/http/middleware"
)

// Deps holds everything the router needs. OAuth may be nil.
type Deps struct {
	Auth     auth.Service
	Verifier middleware.TokenVerifier
	OAuth    *oauth.Registry
}
