package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Create(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error) {
	args := m.Called(ctx, accountID)
	list, _ := args.Get(0).([]domain.Session)
	return list, args.Error(1)
}
func (m *mockSessionStore) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}
func (m *mockSessionStore) DeleteAllByAccount(ctx context.Context, accountID string) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

// failingAccounts wraps the in-memory store and fails chosen calls.
type failingAccounts struct {
	*memAccounts
	getByEmailErr error
	createErr     error
}

func (f *failingAccounts) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if f.getByEmailErr != nil {
		return nil, f.getByEmailErr
	}
	return f.memAccounts.GetByEmail(ctx, email)
}

func (f *failingAccounts) Create(ctx context.Context, a *domain.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.memAccounts.Create(ctx, a)
}

func newMockedService(h *harness, accounts AccountStore, sessions SessionStore) Service {
	return NewService(ServiceDeps{
		Accounts: accounts,
		Sessions: sessions,
		Tokens:   h.jwt,
		Hasher:   hashForTests(),
		TOTP:     h.totp,
		Mailer:   h.mailer,
		Policy:   DefaultPolicy(),
		Now:      h.clock.Now,
	})
}

// --- store failures ---

func TestRegister_LookupFailureIsInternal(t *testing.T) {
	h := newHarness(t)
	accounts := &failingAccounts{memAccounts: newMemAccounts(), getByEmailErr: errors.New("dynamo timeout")}
	svc := newMockedService(h, accounts, newMemSessions())

	_, err := svc.Register(context.Background(), RegisterRequest{Email: testEmail, Password: testPassword, Name: "A"})
	assert.ErrorIs(t, err, domain.ErrInternal)
}

func TestRegister_CreateRaceMapsToConflict(t *testing.T) {
	h := newHarness(t)
	accounts := &failingAccounts{memAccounts: newMemAccounts(), createErr: domain.ErrConflict}
	svc := newMockedService(h, accounts, newMemSessions())

	_, err := svc.Register(context.Background(), RegisterRequest{Email: testEmail, Password: testPassword, Name: "A"})
	assert.ErrorIs(t, err, errEmailTaken)
}

func TestLogin_LookupFailureIsNotInvalidCredentials(t *testing.T) {
	h := newHarness(t)
	accounts := &failingAccounts{memAccounts: newMemAccounts(), getByEmailErr: errors.New("dynamo timeout")}
	svc := newMockedService(h, accounts, newMemSessions())

	_, err := svc.Login(context.Background(), LoginRequest{Email: testEmail, Password: testPassword})
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_LostDeleteRaceIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, testEmail, testPassword)
	stored, err := h.sessions.Get(context.Background(), reg.SessionID)
	require.NoError(t, err)

	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, reg.SessionID).Return(stored, nil)
	ss.On("Delete", mock.Anything, reg.SessionID).Return(domain.ErrNotFound)
	svc := newMockedService(h, h.accounts, ss)

	_, err = svc.Refresh(context.Background(), reg.RefreshToken)
	assert.ErrorIs(t, err, errInvalidRefreshToken)
	ss.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRefresh_DeleteFailureIsInternal(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, testEmail, testPassword)
	stored, err := h.sessions.Get(context.Background(), reg.SessionID)
	require.NoError(t, err)

	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, reg.SessionID).Return(stored, nil)
	ss.On("Delete", mock.Anything, reg.SessionID).Return(errors.New("redis down"))
	svc := newMockedService(h, h.accounts, ss)

	_, err = svc.Refresh(context.Background(), reg.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInternal)
}

func TestLogout_SwallowsStoreErrors(t *testing.T) {
	h := newHarness(t)
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	svc := newMockedService(h, h.accounts, ss)

	assert.NotPanics(t, func() { svc.Logout(context.Background(), "sid.secret") })
	ss.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestLogoutAll_IsNotBestEffort(t *testing.T) {
	h := newHarness(t)
	ss := &mockSessionStore{}
	ss.On("DeleteAllByAccount", mock.Anything, "acc-1").Return(0, errors.New("dynamo down"))
	svc := newMockedService(h, h.accounts, ss)

	assert.ErrorIs(t, svc.LogoutAll(context.Background(), "acc-1"), domain.ErrInternal)
	ss.AssertExpectations(t)
}
