package auth

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-auth-sessions/internal/application/guard"
	"github.com/go-auth-sessions/internal/domain"
	jwtinfra "github.com/go-auth-sessions/internal/infrastructure/jwt"
	"github.com/go-auth-sessions/internal/infrastructure/totp"
	"github.com/go-auth-sessions/internal/pkg/hash"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- clock ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- in-memory account store ---

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*domain.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]*domain.Account{}}
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	c.BackupCodeHashes = append([]string(nil), a.BackupCodeHashes...)
	return &c
}

func notFound() error { return fmt.Errorf("account not found: %w", domain.ErrNotFound) }

func (m *memAccounts) Create(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == a.Email {
			return fmt.Errorf("email taken: %w", domain.ErrConflict)
		}
	}
	m.byID[a.AccountID] = clone(a)
	return nil
}

func (m *memAccounts) Get(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, notFound()
	}
	return clone(a), nil
}

func (m *memAccounts) find(match func(*domain.Account) bool) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if match(a) {
			return clone(a), nil
		}
	}
	return nil, notFound()
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	return m.find(func(a *domain.Account) bool { return a.Email == email })
}

func (m *memAccounts) GetByVerificationToken(_ context.Context, fp string) (*domain.Account, error) {
	return m.find(func(a *domain.Account) bool { return fp != "" && a.VerificationToken == fp })
}

func (m *memAccounts) GetByResetToken(_ context.Context, fp string) (*domain.Account, error) {
	return m.find(func(a *domain.Account) bool { return fp != "" && a.ResetToken == fp })
}

func (m *memAccounts) GetByTempAuthToken(_ context.Context, fp string) (*domain.Account, error) {
	return m.find(func(a *domain.Account) bool { return fp != "" && a.TempAuthToken == fp })
}

func (m *memAccounts) mutate(id string, fn func(*domain.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return notFound()
	}
	fn(a)
	return nil
}

// mutateIf applies fn only while cond holds, like a DynamoDB conditional
// update.
func (m *memAccounts) mutateIf(id string, cond func(*domain.Account) bool, fn func(*domain.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || !cond(a) {
		return notFound()
	}
	fn(a)
	return nil
}

func (m *memAccounts) RecordFailedLogin(_ context.Context, id string) (int, error) {
	var n int
	err := m.mutate(id, func(a *domain.Account) {
		a.FailedLoginAttempts++
		n = a.FailedLoginAttempts
	})
	return n, err
}

func (m *memAccounts) Lock(_ context.Context, id string, until time.Time) error {
	return m.mutate(id, func(a *domain.Account) {
		a.LockedUntil = &until
		a.FailedLoginAttempts = 0
	})
}

func (m *memAccounts) RecordSuccessfulLogin(_ context.Context, id, ip string, at time.Time) error {
	return m.mutate(id, func(a *domain.Account) {
		a.FailedLoginAttempts = 0
		a.LockedUntil = nil
		a.LastLoginAt = &at
		a.LastLoginIP = ip
	})
}

func (m *memAccounts) SetVerificationToken(_ context.Context, id, fp string, exp time.Time) error {
	return m.mutate(id, func(a *domain.Account) {
		a.VerificationToken = fp
		a.VerificationTokenExpires = &exp
	})
}

func (m *memAccounts) MarkEmailVerified(_ context.Context, id, fp string) error {
	return m.mutateIf(id, func(a *domain.Account) bool { return a.VerificationToken == fp }, func(a *domain.Account) {
		a.IsEmailVerified = true
		a.VerificationToken = ""
		a.VerificationTokenExpires = nil
	})
}

func (m *memAccounts) SetResetToken(_ context.Context, id, fp string, exp time.Time) error {
	return m.mutate(id, func(a *domain.Account) {
		a.ResetToken = fp
		a.ResetTokenExpires = &exp
	})
}

func (m *memAccounts) ResetPassword(_ context.Context, id, fp, h string) error {
	return m.mutateIf(id, func(a *domain.Account) bool { return a.ResetToken == fp }, func(a *domain.Account) {
		a.PasswordHash = h
		a.ResetToken = ""
		a.ResetTokenExpires = nil
	})
}

func (m *memAccounts) SetPasswordHash(_ context.Context, id, h string) error {
	return m.mutate(id, func(a *domain.Account) { a.PasswordHash = h })
}

func (m *memAccounts) SetTwoFactorTempSecret(_ context.Context, id, secret string) error {
	return m.mutate(id, func(a *domain.Account) { a.TwoFactorTempSecret = secret })
}

func (m *memAccounts) EnableTwoFactor(_ context.Context, id, secret string, hashes []string) error {
	return m.mutate(id, func(a *domain.Account) {
		a.TwoFactorEnabled = true
		a.TwoFactorSecret = secret
		a.TwoFactorTempSecret = ""
		a.BackupCodeHashes = hashes
	})
}

func (m *memAccounts) DisableTwoFactor(_ context.Context, id string) error {
	return m.mutate(id, func(a *domain.Account) {
		a.TwoFactorEnabled = false
		a.TwoFactorSecret = ""
		a.TwoFactorTempSecret = ""
		a.BackupCodeHashes = nil
		a.TempAuthToken = ""
		a.TempAuthExpires = nil
	})
}

func (m *memAccounts) SetTempAuthToken(_ context.Context, id, fp string, exp time.Time) error {
	return m.mutate(id, func(a *domain.Account) {
		a.TempAuthToken = fp
		a.TempAuthExpires = &exp
	})
}

func (m *memAccounts) ClearTempAuthToken(_ context.Context, id, fp string) error {
	return m.mutateIf(id, func(a *domain.Account) bool { return a.TempAuthToken == fp }, func(a *domain.Account) {
		a.TempAuthToken = ""
		a.TempAuthExpires = nil
	})
}

func (m *memAccounts) ConsumeBackupCode(_ context.Context, id, used string, remaining []string) error {
	holds := func(a *domain.Account) bool {
		return slices.Contains(a.BackupCodeHashes, used) && len(a.BackupCodeHashes) == len(remaining)+1
	}
	return m.mutateIf(id, holds, func(a *domain.Account) {
		a.BackupCodeHashes = append([]string(nil), remaining...)
	})
}

func (m *memAccounts) byEmail(t *testing.T, email string) *domain.Account {
	t.Helper()
	a, err := m.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}

// --- in-memory session store ---

type memSessions struct {
	mu   sync.Mutex
	byID map[string]domain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]domain.Session{}}
}

func (m *memSessions) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.SessionID] = *s
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return &s, nil
}

func (m *memSessions) ListByAccount(_ context.Context, accountID string) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.byID {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	delete(m.byID, id)
	return nil
}

func (m *memSessions) DeleteAllByAccount(_ context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.byID {
		if s.AccountID == accountID {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) count(accountID string) int {
	list, _ := m.ListByAccount(context.Background(), accountID)
	return len(list)
}

// --- mail and events ---

type sentMail struct {
	To, Subject, Body string
}

type recMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recMailer) SendEmail(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{To: to, Subject: subject, Body: body})
	return r.err
}

func (r *recMailer) to(addr string) []sentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMail
	for _, m := range r.sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

var tokenParam = regexp.MustCompile(`token=(\S+)`)

// lastToken pulls the token query parameter out of the newest mail to addr
// whose body links to path.
func (r *recMailer) lastToken(t *testing.T, addr, path string) string {
	t.Helper()
	mails := r.to(addr)
	for i := len(mails) - 1; i >= 0; i-- {
		if !regexp.MustCompile(regexp.QuoteMeta(path)).MatchString(mails[i].Body) {
			continue
		}
		m := tokenParam.FindStringSubmatch(mails[i].Body)
		require.Len(t, m, 2)
		tok, err := url.QueryUnescape(m[1])
		require.NoError(t, err)
		return tok
	}
	t.Fatalf("no %s mail for %s", path, addr)
	return ""
}

type recEvents struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
}

func (r *recEvents) Publish(_ context.Context, ev domain.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recEvents) types() []domain.SecurityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SecurityEventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// --- harness ---

func hashForTests() *hash.Hasher { return hash.New(bcrypt.MinCost) }

type harness struct {
	svc      Service
	accounts *memAccounts
	sessions *memSessions
	mailer   *recMailer
	events   *recEvents
	clock    *testClock
	totp     *totp.Engine
	jwt      *jwtinfra.Provider
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith lets a test put a wrapper in front of the account store.
func newHarnessWith(t *testing.T, wrap func(*memAccounts) AccountStore) *harness {
	t.Helper()
	h := &harness{
		accounts: newMemAccounts(),
		sessions: newMemSessions(),
		mailer:   &recMailer{},
		events:   &recEvents{},
		clock:    newClock(),
		totp:     totp.NewEngine("Test", 2),
	}
	p, err := jwtinfra.NewHMACProvider([]byte("0123456789abcdef0123456789abcdef"), "test", 15*time.Minute)
	require.NoError(t, err)
	h.jwt = p

	var accounts AccountStore = h.accounts
	if wrap != nil {
		accounts = wrap(h.accounts)
	}

	policy := DefaultPolicy()
	policy.FrontendURL = "https://app.example.com"
	policy.AppName = "Test"
	h.svc = NewService(ServiceDeps{
		Accounts: accounts,
		Sessions: h.sessions,
		Guard: guard.New(accounts, guard.Config{
			MaxAttempts:  5,
			LockDuration: 30 * time.Minute,
			Events:       h.events,
			Now:          h.clock.Now,
		}),
		Tokens: h.jwt,
		Hasher: hashForTests(),
		TOTP:   h.totp,
		Mailer: h.mailer,
		Events: h.events,
		Policy: policy,
		Now:    h.clock.Now,
	})
	return h
}

const (
	testEmail    = "a@x.com"
	testPassword = "Aa1!aaaa"
)

func (h *harness) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := h.svc.Register(context.Background(), RegisterRequest{
		Email: email, Password: password, Name: "A", IP: "10.0.0.1", UserAgent: "test-agent",
	})
	require.NoError(t, err)
	return res
}

func (h *harness) login(email, password string) (*LoginResult, error) {
	return h.svc.Login(context.Background(), LoginRequest{
		Email: email, Password: password, IP: "10.0.0.2", UserAgent: "test-agent",
	})
}

// enable2FA runs setup to completion and returns the secret and backup codes.
func (h *harness) enable2FA(t *testing.T, accountID, email string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	setup, err := h.svc.Enable2FA(ctx, accountID)
	require.NoError(t, err)
	code, err := h.totp.Code(setup.Secret, h.clock.Now())
	require.NoError(t, err)
	codes, err := h.svc.Verify2FASetup(ctx, Verify2FASetupRequest{Email: email, Code: code})
	require.NoError(t, err)
	return setup.Secret, codes
}
