package totp

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"math/big"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	secretSize       = 20
	period           = 30
	qrSize           = 256
	backupCodeLength = 8
	backupAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Secret is a freshly generated, not yet trusted TOTP secret.
type Secret struct {
	Base32     string
	OTPAuthURL string
}

// Engine generates and validates RFC 6238 codes and one-time backup codes.
type Engine struct {
	issuer string
	skew   uint
}

// NewEngine returns an engine that accepts codes up to skew time steps either
// side of the current one.
func NewEngine(issuer string, skew int) *Engine {
	if skew < 0 {
		skew = 0
	}
	return &Engine{issuer: issuer, skew: uint(skew)}
}

// GenerateSecret creates a new secret whose otpauth URI is labelled with the
// account's email.
func (e *Engine) GenerateSecret(accountName string) (*Secret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	return &Secret{Base32: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// QRCode renders an otpauth URI as a PNG data URL.
func (e *Engine) QRCode(otpauthURL string) (string, error) {
	key, err := otp.NewKeyFromURL(otpauthURL)
	if err != nil {
		return "", fmt.Errorf("parse otpauth url: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Validate reports whether code is valid for secret at now. Malformed input
// and malformed secrets are simply invalid.
func (e *Engine) Validate(secret, code string, now time.Time) bool {
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, now.UTC(), e.opts())
	return err == nil && ok
}

// Code returns the code for secret at t.
func (e *Engine) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), e.opts())
}

func (e *Engine) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      e.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// BackupCodes returns n random 8-character upper-case alphanumeric codes.
func (e *Engine) BackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	max := big.NewInt(int64(len(backupAlphabet)))
	for i := range codes {
		b := make([]byte, backupCodeLength)
		for j := range b {
			idx, err := rand.Int(rand.Reader, max)
			if err != nil {
				return nil, fmt.Errorf("generate backup code: %w", err)
			}
			b[j] = backupAlphabet[idx.Int64()]
		}
		codes[i] = string(b)
	}
	return codes, nil
}

// IsBackupCode reports whether code has the shape of a backup code rather
// than a TOTP code.
func IsBackupCode(code string) bool {
	c := NormalizeBackupCode(code)
	if len(c) != backupCodeLength {
		return false
	}
	for _, r := range c {
		if !strings.ContainsRune(backupAlphabet, r) {
			return false
		}
	}
	return true
}

// NormalizeBackupCode upper-cases and strips separators users tend to type.
func NormalizeBackupCode(code string) string {
	r := strings.NewReplacer(" ", "", "-", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(code)))
}
