package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-auth-sessions/internal/config"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the access token payload: sub, email, iat, exp.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AccountID is the token subject.
func (c *Claims) AccountID() string { return c.Subject }

// Provider signs and verifies access tokens. It uses HS256 when a shared secret
// is configured, otherwise RS256 with PEM key files.
type Provider struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	issuer    string
	expiry    time.Duration
	now       func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.JWTSecret != "" {
		return NewHMACProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.Auth.AccessTokenTTL)
	}

	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return newProvider(jwt.SigningMethodRS256, privKey, pubKey, cfg.JWTIssuer, cfg.Auth.AccessTokenTTL), nil
}

// NewHMACProvider builds an HS256 provider. The secret must be at least 32 bytes.
func NewHMACProvider(secret []byte, issuer string, expiry time.Duration) (*Provider, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return newProvider(jwt.SigningMethodHS256, secret, secret, issuer, expiry), nil
}

// NewRSAProvider builds an RS256 provider from already-parsed keys.
func NewRSAProvider(priv *rsa.PrivateKey, issuer string, expiry time.Duration) *Provider {
	return newProvider(jwt.SigningMethodRS256, priv, &priv.PublicKey, issuer, expiry)
}

func newProvider(method jwt.SigningMethod, signKey, verifyKey interface{}, issuer string, expiry time.Duration) *Provider {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Provider{
		method:    method,
		signKey:   signKey,
		verifyKey: verifyKey,
		issuer:    issuer,
		expiry:    expiry,
		now:       time.Now,
	}
}

// Issue mints a signed access token for the account.
func (p *Provider) Issue(accountID, email string) (string, error) {
	now := p.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
		},
	}
	token := jwt.NewWithClaims(p.method, claims)
	return token.SignedString(p.signKey)
}

// Verify parses tokenStr and returns its claims. Every failure is reported as
// domain.ErrUnauthorized.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}
