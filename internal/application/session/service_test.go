package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/emmegi/catalog-api/internal/infrastructure/google"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockSessionRepo struct{ mock.Mock }

func (m *mockSessionRepo) Put(ctx context.Context, sess *domain.Session) error {
	return m.Called(ctx, sess).Error(0)
}
func (m *mockSessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}
func (m *mockSessionRepo) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}
func (m *mockSessionRepo) RotateRefreshToken(ctx context.Context, sessionID, token string, expiresAt int64) error {
	return m.Called(ctx, sessionID, token, expiresAt).Error(0)
}
func (m *mockSessionRepo) Update(ctx context.Context, sessionID string, fields map[string]interface{}) error {
	return m.Called(ctx, sessionID, fields).Error(0)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}
func (m *mockUserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *mockUserRepo) Update(ctx context.Context, userID string, fields map[string]interface{}) error {
	return m.Called(ctx, userID, fields).Error(0)
}

type mockAttemptRepo struct{ mock.Mock }

func (m *mockAttemptRepo) Get(ctx context.Context, email string) (*domain.LoginAttempt, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoginAttempt), args.Error(1)
}
func (m *mockAttemptRepo) Increment(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}
func (m *mockAttemptRepo) Reset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockVerificationRepo struct{ mock.Mock }

func (m *mockVerificationRepo) Get(ctx context.Context, email string) (*domain.VerificationSession, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationSession), args.Error(1)
}
func (m *mockVerificationRepo) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockGrantRepo struct{ mock.Mock }

func (m *mockGrantRepo) Upsert(ctx context.Context, grant *domain.RoleGrant) error {
	return m.Called(ctx, grant).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(userID, role, sessionID string) (string, error) {
	args := m.Called(userID, role, sessionID)
	return args.String(0), args.Error(1)
}

type mockGoogleVerifier struct{ mock.Mock }

func (m *mockGoogleVerifier) Verify(ctx context.Context, idToken string) (*google.Payload, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*google.Payload), args.Error(1)
}

type fixture struct {
	sessions      *mockSessionRepo
	users         *mockUserRepo
	attempts      *mockAttemptRepo
	verifications *mockVerificationRepo
	grants        *mockGrantRepo
	signer        *mockSigner
	googles       *mockGoogleVerifier
	svc           *Service
}

func newFixture() *fixture {
	f := &fixture{
		sessions:      new(mockSessionRepo),
		users:         new(mockUserRepo),
		attempts:      new(mockAttemptRepo),
		verifications: new(mockVerificationRepo),
		grants:        new(mockGrantRepo),
		signer:        new(mockSigner),
		googles:       new(mockGoogleVerifier),
	}
	f.svc = NewService(f.sessions, f.users, f.attempts, f.verifications, f.grants, f.signer, f.googles, slog.Default())
	return f
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture()

	f.attempts.On("Get", mock.Anything, "admin@emmegi.example").Return(&domain.LoginAttempt{}, nil)
	f.users.On("GetByEmail", mock.Anything, "admin@emmegi.example").Return(&domain.User{
		UserID: "u1", Email: "admin@emmegi.example", Role: domain.RoleAdmin,
		PasswordHash: hashOf(t, "secret1"), Enable: true,
	}, nil)
	f.attempts.On("Reset", mock.Anything, "admin@emmegi.example").Return(nil)
	f.verifications.On("Get", mock.Anything, "admin@emmegi.example").Return(nil, domain.ErrNotFound)
	f.sessions.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	f.signer.On("Sign", "u1", domain.RoleAdmin, mock.Anything).Return("jwt", nil)

	tokens, err := f.svc.Login(context.Background(), "Admin@Emmegi.example", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "jwt", tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	f.attempts.AssertCalled(t, "Reset", mock.Anything, "admin@emmegi.example")
}

func TestLogin_WrongPasswordIncrementsCounter(t *testing.T) {
	f := newFixture()

	f.attempts.On("Get", mock.Anything, "admin@emmegi.example").Return(&domain.LoginAttempt{FailedCount: 1}, nil)
	f.users.On("GetByEmail", mock.Anything, "admin@emmegi.example").Return(&domain.User{
		UserID: "u1", PasswordHash: hashOf(t, "secret1"), Enable: true,
	}, nil)
	f.attempts.On("Increment", mock.Anything, "admin@emmegi.example").Return(2, nil)

	_, err := f.svc.Login(context.Background(), "admin@emmegi.example", "wrong")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	f.attempts.AssertCalled(t, "Increment", mock.Anything, "admin@emmegi.example")
}

func TestLogin_ThirdFailureLocks(t *testing.T) {
	f := newFixture()

	f.attempts.On("Get", mock.Anything, "admin@emmegi.example").Return(&domain.LoginAttempt{FailedCount: 2}, nil)
	f.users.On("GetByEmail", mock.Anything, "admin@emmegi.example").Return(&domain.User{
		UserID: "u1", PasswordHash: hashOf(t, "secret1"), Enable: true,
	}, nil)
	f.attempts.On("Increment", mock.Anything, "admin@emmegi.example").Return(domain.LockoutThreshold, nil)

	_, err := f.svc.Login(context.Background(), "admin@emmegi.example", "wrong")
	assert.True(t, errors.Is(err, domain.ErrLocked))
}

func TestLogin_LockedAccountRejectedBeforePasswordCheck(t *testing.T) {
	f := newFixture()

	f.attempts.On("Get", mock.Anything, "admin@emmegi.example").Return(&domain.LoginAttempt{
		FailedCount: domain.LockoutThreshold,
	}, nil)

	_, err := f.svc.Login(context.Background(), "admin@emmegi.example", "secret1")
	assert.True(t, errors.Is(err, domain.ErrLocked))
	// Even the right password is not checked while locked.
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLogin_UnknownEmailAlsoCountsAsFailure(t *testing.T) {
	f := newFixture()

	f.attempts.On("Get", mock.Anything, "ghost@emmegi.example").Return(&domain.LoginAttempt{}, nil)
	f.users.On("GetByEmail", mock.Anything, "ghost@emmegi.example").Return(nil, domain.ErrNotFound)
	f.attempts.On("Increment", mock.Anything, "ghost@emmegi.example").Return(1, nil)

	_, err := f.svc.Login(context.Background(), "ghost@emmegi.example", "whatever")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLogin_PromotesPendingVerifiedInvite(t *testing.T) {
	f := newFixture()

	user := &domain.User{
		UserID: "u1", Email: "new.admin@emmegi.example", Role: domain.RoleUser,
		PasswordHash: hashOf(t, "secret1"), Enable: true,
	}
	f.attempts.On("Get", mock.Anything, user.Email).Return(&domain.LoginAttempt{}, nil)
	f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.attempts.On("Reset", mock.Anything, user.Email).Return(nil)
	f.verifications.On("Get", mock.Anything, user.Email).Return(&domain.VerificationSession{
		Email: user.Email, Kind: domain.KindAdminInvite, Verified: true, CreatedAt: time.Now(),
	}, nil)
	f.users.On("Update", mock.Anything, "u1", map[string]interface{}{"role": domain.RoleAdmin}).Return(nil)
	f.grants.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.RoleGrant")).Return(nil)
	f.verifications.On("Delete", mock.Anything, user.Email).Return(nil)
	f.sessions.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.signer.On("Sign", "u1", domain.RoleAdmin, mock.Anything).Return("jwt", nil)

	tokens, err := f.svc.Login(context.Background(), user.Email, "secret1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, tokens.User.Role)
	f.verifications.AssertCalled(t, "Delete", mock.Anything, user.Email)
}

func TestGoogleLogin_CreatesVisitorOnFirstSight(t *testing.T) {
	f := newFixture()

	f.googles.On("Verify", mock.Anything, "gtoken").Return(&google.Payload{
		Sub: "sub123", Email: "Visitor@Gmail.example", EmailVerified: true,
		FirstName: "Vera", LastName: "Visitor",
	}, nil)
	f.users.On("GetByEmail", mock.Anything, "visitor@gmail.example").Return(nil, domain.ErrNotFound)

	var created *domain.User
	f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)
	f.sessions.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.signer.On("Sign", mock.Anything, domain.RoleUser, mock.Anything).Return("jwt", nil)

	tokens, err := f.svc.GoogleLogin(context.Background(), "gtoken")
	require.NoError(t, err)
	assert.Equal(t, "jwt", tokens.AccessToken)

	require.NotNil(t, created)
	assert.Equal(t, "visitor@gmail.example", created.Email)
	assert.Equal(t, domain.RoleUser, created.Role)
	assert.Equal(t, "google", created.AuthProvider)
	assert.Equal(t, "sub123", created.GoogleSub)
}

func TestGoogleLogin_RejectsUnverifiedEmail(t *testing.T) {
	f := newFixture()

	f.googles.On("Verify", mock.Anything, "gtoken").Return(&google.Payload{
		Sub: "sub123", Email: "visitor@gmail.example", EmailVerified: false,
	}, nil)

	_, err := f.svc.GoogleLogin(context.Background(), "gtoken")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture()

	f.sessions.On("GetByRefreshToken", mock.Anything, "old-token").Return(&domain.Session{
		SessionID: "s1", UserID: "u1", Enable: true,
		RefreshExpiresAt: time.Now().Add(time.Hour).Unix(),
	}, nil)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Role: domain.RoleUser}, nil)
	f.sessions.On("RotateRefreshToken", mock.Anything, "s1", mock.Anything, mock.Anything).Return(nil)
	f.signer.On("Sign", "u1", domain.RoleUser, "s1").Return("jwt", nil)

	tokens, err := f.svc.Refresh(context.Background(), "old-token")
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", tokens.RefreshToken)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	f := newFixture()

	f.sessions.On("GetByRefreshToken", mock.Anything, "old-token").Return(&domain.Session{
		SessionID: "s1", UserID: "u1", Enable: true,
		RefreshExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}, nil)

	_, err := f.svc.Refresh(context.Background(), "old-token")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestRefresh_ClosedSession(t *testing.T) {
	f := newFixture()

	f.sessions.On("GetByRefreshToken", mock.Anything, "old-token").Return(&domain.Session{
		SessionID: "s1", UserID: "u1", Enable: false,
		RefreshExpiresAt: time.Now().Add(time.Hour).Unix(),
	}, nil)

	_, err := f.svc.Refresh(context.Background(), "old-token")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLogout_DisablesSession(t *testing.T) {
	f := newFixture()

	f.sessions.On("Update", mock.Anything, "s1", map[string]interface{}{"enable": false}).Return(nil)

	require.NoError(t, f.svc.Logout(context.Background(), "s1"))
	f.sessions.AssertExpectations(t)
}
