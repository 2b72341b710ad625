package oauth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-auth-sessions/internal/domain"
)

// Profile is the identity an external provider vouches for.
type Profile struct {
	ProviderID string
	Email      string
	Name       string
}

// Provider turns a provider's raw user profile into a Profile. Implementations
// do no network I/O; the callback handler hands them the already-fetched payload.
type Provider interface {
	Name() string
	ExchangeProfile(raw map[string]any) (*Profile, error)
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// DefaultRegistry holds the google, github and microsoft variants.
func DefaultRegistry() *Registry {
	return NewRegistry(Google{}, GitHub{}, Microsoft{})
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider %q: %w", name, domain.ErrNotFound)
	}
	return p, nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Exchange resolves the provider and exchanges the profile in one step.
func (r *Registry) Exchange(name string, raw map[string]any) (*Profile, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return p.ExchangeProfile(raw)
}

// Google maps OpenID Connect ID token claims.
type Google struct{}

func (Google) Name() string { return "google" }

func (Google) ExchangeProfile(raw map[string]any) (*Profile, error) {
	if raw == nil {
		return nil, fmt.Errorf("no profile from google: %w", domain.ErrUnauthorized)
	}
	email := str(raw, "email")
	if email == "" {
		return nil, fmt.Errorf("google profile has no email: %w", domain.ErrUnauthorized)
	}
	if verified, ok := raw["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("google email not verified: %w", domain.ErrUnauthorized)
	}
	name := strings.TrimSpace(str(raw, "given_name") + " " + str(raw, "family_name"))
	if name == "" {
		name = str(raw, "name")
	}
	return &Profile{ProviderID: str(raw, "sub"), Email: normalizeEmail(email), Name: name}, nil
}

// GitHub maps the /user payload. Accounts without a public email are rejected.
type GitHub struct{}

func (GitHub) Name() string { return "github" }

func (GitHub) ExchangeProfile(raw map[string]any) (*Profile, error) {
	if raw == nil {
		return nil, fmt.Errorf("no profile from github: %w", domain.ErrUnauthorized)
	}
	email := firstEmail(raw)
	if email == "" {
		return nil, fmt.Errorf("github account must have a public email: %w", domain.ErrUnauthorized)
	}
	name := str(raw, "name")
	if name == "" {
		name = str(raw, "login")
	}
	return &Profile{ProviderID: str(raw, "id"), Email: normalizeEmail(email), Name: name}, nil
}

// Microsoft maps the Graph /me payload.
type Microsoft struct{}

func (Microsoft) Name() string { return "microsoft" }

func (Microsoft) ExchangeProfile(raw map[string]any) (*Profile, error) {
	if raw == nil {
		return nil, fmt.Errorf("no profile from microsoft: %w", domain.ErrUnauthorized)
	}
	email := firstEmail(raw)
	if email == "" {
		email = str(raw, "userPrincipalName")
	}
	if email == "" {
		return nil, fmt.Errorf("microsoft profile has no email: %w", domain.ErrUnauthorized)
	}
	return &Profile{ProviderID: str(raw, "id"), Email: normalizeEmail(email), Name: str(raw, "displayName")}, nil
}

// str reads a string or numeric field. GitHub ids arrive as JSON numbers.
func str(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return fmt.Sprintf("%d", v)
	}
	return ""
}

// firstEmail accepts either a flat "email"/"mail" field or a passport-style
// "emails": [{"value": ...}] list.
func firstEmail(raw map[string]any) string {
	if e := str(raw, "email"); e != "" {
		return e
	}
	if e := str(raw, "mail"); e != "" {
		return e
	}
	list, _ := raw["emails"].([]any)
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			if e := str(m, "value"); e != "" {
				return e
			}
		}
	}
	return ""
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
