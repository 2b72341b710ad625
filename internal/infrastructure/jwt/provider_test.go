package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-auth-sessions/internal/config"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestHMAC_IssueVerify(t *testing.T) {
	p, err := NewHMACProvider(testSecret, "test", 15*time.Minute)
	require.NoError(t, err)

	signed, err := p.Issue("acc-1", "a@x.com")
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID())
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, 15*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestHMAC_ShortSecretRejected(t *testing.T) {
	_, err := NewHMACProvider([]byte("short"), "test", time.Minute)
	assert.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	p, err := NewHMACProvider(testSecret, "test", time.Minute)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Now().Add(-time.Hour) }
	signed, err := p.Issue("acc-1", "a@x.com")
	require.NoError(t, err)

	p.now = time.Now
	_, err = p.Verify(signed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestVerify_WrongKey(t *testing.T) {
	a, err := NewHMACProvider(testSecret, "test", time.Minute)
	require.NoError(t, err)
	b, err := NewHMACProvider([]byte(strings.Repeat("z", 32)), "test", time.Minute)
	require.NoError(t, err)

	signed, err := a.Issue("acc-1", "a@x.com")
	require.NoError(t, err)
	_, err = b.Verify(signed)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestVerify_WrongIssuer(t *testing.T) {
	a, err := NewHMACProvider(testSecret, "issuer-a", time.Minute)
	require.NoError(t, err)
	b, err := NewHMACProvider(testSecret, "issuer-b", time.Minute)
	require.NoError(t, err)

	signed, err := a.Issue("acc-1", "a@x.com")
	require.NoError(t, err)
	_, err = b.Verify(signed)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestVerify_AlgorithmConfusionRejected(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaP := NewRSAProvider(privKey, "test", time.Minute)

	// HS256 token signed with the RSA public key bytes must not verify.
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			Issuer:    "test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := forged.SignedString(pubDER)
	require.NoError(t, err)

	_, err = rsaP.Verify(signed)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestVerify_Garbage(t *testing.T) {
	p, err := NewHMACProvider(testSecret, "test", time.Minute)
	require.NoError(t, err)
	_, err = p.Verify("not-a-real-token")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestNewProvider_RSAFromPEMFiles(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTIssuer:         "test",
		Auth:              config.AuthPolicy{AccessTokenTTL: time.Hour},
	})
	require.NoError(t, err)

	signed, err := p.Issue("acc-9", "r@x.com")
	require.NoError(t, err)
	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "acc-9", claims.AccountID())
}

func TestNewProvider_MissingKeyFile(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.Error(t, err)
}
