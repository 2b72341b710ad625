package auth

import (
	"context"
	"time"

	"github.com/go-auth-sessions/internal/application/guard"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/infrastructure/totp"
)

// AccountStore is the credential store collaborator. Token lookups take
// sha256 fingerprints, never raw tokens. The consuming writes
// (MarkEmailVerified, ResetPassword, ClearTempAuthToken, ConsumeBackupCode)
// are compare-and-clear: they return domain.ErrNotFound when the stored
// token or code no longer matches, so a token is redeemed at most once.
type AccountStore interface {
	guard.Store
	Create(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByVerificationToken(ctx context.Context, fingerprint string) (*domain.Account, error)
	GetByResetToken(ctx context.Context, fingerprint string) (*domain.Account, error)
	GetByTempAuthToken(ctx context.Context, fingerprint string) (*domain.Account, error)
	SetVerificationToken(ctx context.Context, accountID, fingerprint string, expires time.Time) error
	MarkEmailVerified(ctx context.Context, accountID, fingerprint string) error
	SetResetToken(ctx context.Context, accountID, fingerprint string, expires time.Time) error
	ResetPassword(ctx context.Context, accountID, fingerprint, passwordHash string) error
	SetPasswordHash(ctx context.Context, accountID, passwordHash string) error
	SetTwoFactorTempSecret(ctx context.Context, accountID, secret string) error
	EnableTwoFactor(ctx context.Context, accountID, secret string, backupCodeHashes []string) error
	DisableTwoFactor(ctx context.Context, accountID string) error
	SetTempAuthToken(ctx context.Context, accountID, fingerprint string, expires time.Time) error
	ClearTempAuthToken(ctx context.Context, accountID, fingerprint string) error
	ConsumeBackupCode(ctx context.Context, accountID, usedHash string, remaining []string) error
}

// SessionStore persists refresh-token sessions. Delete must return
// domain.ErrNotFound when nothing was removed; rotation relies on it.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllByAccount(ctx context.Context, accountID string) (int, error)
}

type AccessTokenIssuer interface {
	Issue(accountID, email string) (string, error)
}

type Hasher interface {
	Hash(plaintext string) (string, error)
	HashWithCost(plaintext string, cost int) (string, error)
	Verify(plaintext, hashed string) bool
}

type TOTPEngine interface {
	GenerateSecret(accountName string) (*totp.Secret, error)
	QRCode(otpauthURL string) (string, error)
	Validate(secret, code string, now time.Time) bool
	BackupCodes(n int) ([]string, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Policy carries every expiry and sizing knob of the flows.
type Policy struct {
	RefreshTokenTTL      time.Duration
	TempAuthTTL          time.Duration
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
	BackupCodeCount      int
	BackupCodeCost       int // 0 uses the hasher's default cost
	AppName              string
	FrontendURL          string
}

func DefaultPolicy() Policy {
	return Policy{
		RefreshTokenTTL:      7 * 24 * time.Hour,
		TempAuthTTL:          5 * time.Minute,
		PasswordResetTTL:     15 * time.Minute,
		EmailVerificationTTL: 24 * time.Hour,
		BackupCodeCount:      10,
	}
}

type ServiceDeps struct {
	Accounts AccountStore
	Sessions SessionStore
	Guard    *guard.Guard
	Tokens   AccessTokenIssuer
	Hasher   Hasher
	TOTP     TOTPEngine
	Mailer   Mailer
	Events   guard.EventPublisher // optional
	Policy   Policy
	Now      func() time.Time
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string)
	LogoutAll(ctx context.Context, accountID string) error
	ListSessions(ctx context.Context, accountID string) ([]domain.Session, error)
	RevokeSession(ctx context.Context, accountID, sessionID string) error
	Profile(ctx context.Context, accountID string) (*domain.Account, error)

	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, accountID string) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	ChangePassword(ctx context.Context, accountID string, req ChangePasswordRequest) error

	Enable2FA(ctx context.Context, accountID string) (*TwoFactorSetup, error)
	Verify2FASetup(ctx context.Context, req Verify2FASetupRequest) ([]string, error)
	Disable2FA(ctx context.Context, accountID, code string) error
	Validate2FALogin(ctx context.Context, req Validate2FARequest) (*AuthResult, error)
}

type service struct {
	accounts AccountStore
	sessions SessionStore
	guard    *guard.Guard
	tokens   AccessTokenIssuer
	hasher   Hasher
	totp     TOTPEngine
	mailer   Mailer
	events   guard.EventPublisher
	policy   Policy
	now      func() time.Time

	// dummyHash is verified against when the email is unknown so the miss
	// costs the same as a wrong password.
	dummyHash string
}

func NewService(d ServiceDeps) Service {
	s := &service{
		accounts: d.Accounts,
		sessions: d.Sessions,
		guard:    d.Guard,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		totp:     d.TOTP,
		mailer:   d.Mailer,
		events:   d.Events,
		policy:   d.Policy,
		now:      d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.guard == nil {
		s.guard = guard.New(d.Accounts, guard.Config{Events: d.Events, Now: s.now})
	}
	s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	return s
}
