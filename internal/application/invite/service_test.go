package invite

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/emmegi/catalog-api/internal/config"
	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockVerificationRepo struct{ mock.Mock }

func (m *mockVerificationRepo) Upsert(ctx context.Context, sess *domain.VerificationSession) error {
	return m.Called(ctx, sess).Error(0)
}
func (m *mockVerificationRepo) Get(ctx context.Context, email string) (*domain.VerificationSession, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationSession), args.Error(1)
}
func (m *mockVerificationRepo) Claim(ctx context.Context, email, code, kind string) error {
	return m.Called(ctx, email, code, kind).Error(0)
}
func (m *mockVerificationRepo) Unclaim(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockVerificationRepo) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
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

type mockGrantRepo struct{ mock.Mock }

func (m *mockGrantRepo) Upsert(ctx context.Context, grant *domain.RoleGrant) error {
	return m.Called(ctx, grant).Error(0)
}
func (m *mockGrantRepo) ListByRole(ctx context.Context, role string) ([]domain.RoleGrant, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RoleGrant), args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

func newTestService(verifications *mockVerificationRepo, users *mockUserRepo, grants *mockGrantRepo, mailer *mockMailer) *Service {
	cfg := &config.Config{
		AppBaseURL:       "https://catalog.emmegi.example",
		AdminAlertEmails: []string{"owner@emmegi.example"},
	}
	return NewService(verifications, users, grants, mailer, cfg, slog.Default())
}

func TestIssue_StoresSessionAndSendsLinks(t *testing.T) {
	verifications := new(mockVerificationRepo)
	mailer := new(mockMailer)
	svc := newTestService(verifications, new(mockUserRepo), new(mockGrantRepo), mailer)

	var stored *domain.VerificationSession
	verifications.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.VerificationSession")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.VerificationSession) }).
		Return(nil)
	mailer.On("SendEmail", "new.admin@emmegi.example", mock.Anything, mock.Anything).Return(nil)

	err := svc.Issue(context.Background(), "New.Admin@Emmegi.example ", "boss")
	require.NoError(t, err)

	require.NotNil(t, stored)
	assert.Equal(t, "new.admin@emmegi.example", stored.Email)
	assert.Equal(t, domain.KindAdminInvite, stored.Kind)
	assert.False(t, stored.Verified)
	assert.Len(t, stored.Code, 32)

	body := mailer.Calls[0].Arguments.String(2)
	assert.Contains(t, body, "action=accept")
	assert.Contains(t, body, "action=decline")
	assert.Contains(t, body, stored.Code)
}

func TestIssue_EmailFailureIsReported(t *testing.T) {
	verifications := new(mockVerificationRepo)
	mailer := new(mockMailer)
	svc := newTestService(verifications, new(mockUserRepo), new(mockGrantRepo), mailer)

	verifications.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := svc.Issue(context.Background(), "new.admin@emmegi.example", "boss")
	assert.Error(t, err)
	// The session stays stored so a retry can simply re-issue.
	verifications.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestConfirm_UnknownEmail(t *testing.T) {
	verifications := new(mockVerificationRepo)
	svc := newTestService(verifications, new(mockUserRepo), new(mockGrantRepo), new(mockMailer))

	verifications.On("Get", mock.Anything, "ghost@emmegi.example").Return(nil, domain.ErrNotFound)

	_, err := svc.Confirm(context.Background(), "ghost@emmegi.example", "deadbeef", "accept")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestConfirm_WrongToken(t *testing.T) {
	verifications := new(mockVerificationRepo)
	svc := newTestService(verifications, new(mockUserRepo), new(mockGrantRepo), new(mockMailer))

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "righttoken", Kind: domain.KindAdminInvite, CreatedAt: time.Now(),
	}, nil)

	_, err := svc.Confirm(context.Background(), "a@emmegi.example", "wrongtoken", "accept")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestConfirm_ExpiredInvitation(t *testing.T) {
	verifications := new(mockVerificationRepo)
	svc := newTestService(verifications, new(mockUserRepo), new(mockGrantRepo), new(mockMailer))

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "tok", Kind: domain.KindAdminInvite,
		CreatedAt: time.Now().Add(-domain.InviteWindow - time.Minute),
	}, nil)

	_, err := svc.Confirm(context.Background(), "a@emmegi.example", "tok", "accept")
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

func TestConfirm_AlreadyUsedInvitation(t *testing.T) {
	verifications := new(mockVerificationRepo)
	svc := newTestService(verifications, new(mockUserRepo), new(mockGrantRepo), new(mockMailer))

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "tok", Kind: domain.KindAdminInvite,
		Verified: true, CreatedAt: time.Now(),
	}, nil)

	_, err := svc.Confirm(context.Background(), "a@emmegi.example", "tok", "accept")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestConfirm_DeclineRemovesInvitation(t *testing.T) {
	verifications := new(mockVerificationRepo)
	mailer := new(mockMailer)
	svc := newTestService(verifications, new(mockUserRepo), new(mockGrantRepo), mailer)

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "tok", Kind: domain.KindAdminInvite, CreatedAt: time.Now(),
	}, nil)
	verifications.On("Delete", mock.Anything, "a@emmegi.example").Return(nil)
	mailer.On("SendEmail", "owner@emmegi.example", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Confirm(context.Background(), "a@emmegi.example", "tok", "decline")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	verifications.AssertCalled(t, "Delete", mock.Anything, "a@emmegi.example")
	mailer.AssertCalled(t, "SendEmail", "owner@emmegi.example", mock.Anything, mock.Anything)
}

func TestConfirm_AcceptCreatesAdminWithOneTimePassword(t *testing.T) {
	verifications := new(mockVerificationRepo)
	users := new(mockUserRepo)
	grants := new(mockGrantRepo)
	mailer := new(mockMailer)
	svc := newTestService(verifications, users, grants, mailer)

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "tok", Kind: domain.KindAdminInvite, CreatedAt: time.Now(),
	}, nil)
	verifications.On("Claim", mock.Anything, "a@emmegi.example", "tok", domain.KindAdminInvite).Return(nil)
	users.On("GetByEmail", mock.Anything, "a@emmegi.example").Return(nil, domain.ErrNotFound)

	var created *domain.User
	users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)
	grants.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.RoleGrant")).Return(nil)
	mailer.On("SendEmail", "owner@emmegi.example", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Confirm(context.Background(), "a@emmegi.example", "tok", "accept")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Len(t, result.OneTimePassword, 8)

	require.NotNil(t, created)
	assert.Equal(t, domain.RoleAdmin, created.Role)
	assert.True(t, created.EmailConfirmed)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEqual(t, result.OneTimePassword, created.PasswordHash)
}

func TestConfirm_AcceptLosesClaimRace(t *testing.T) {
	verifications := new(mockVerificationRepo)
	users := new(mockUserRepo)
	svc := newTestService(verifications, users, new(mockGrantRepo), new(mockMailer))

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "tok", Kind: domain.KindAdminInvite, CreatedAt: time.Now(),
	}, nil)
	verifications.On("Claim", mock.Anything, "a@emmegi.example", "tok", domain.KindAdminInvite).
		Return(domain.ErrConflict)

	_, err := svc.Confirm(context.Background(), "a@emmegi.example", "tok", "accept")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConfirm_AcceptReleasesClaimOnProvisionFailure(t *testing.T) {
	verifications := new(mockVerificationRepo)
	users := new(mockUserRepo)
	svc := newTestService(verifications, users, new(mockGrantRepo), new(mockMailer))

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "tok", Kind: domain.KindAdminInvite, CreatedAt: time.Now(),
	}, nil)
	verifications.On("Claim", mock.Anything, "a@emmegi.example", "tok", domain.KindAdminInvite).Return(nil)
	users.On("GetByEmail", mock.Anything, "a@emmegi.example").Return(nil, domain.ErrNotFound)
	users.On("Create", mock.Anything, mock.Anything).Return(errors.New("dynamo unavailable"))
	verifications.On("Unclaim", mock.Anything, "a@emmegi.example").Return(nil)

	_, err := svc.Confirm(context.Background(), "a@emmegi.example", "tok", "accept")
	require.Error(t, err)
	verifications.AssertCalled(t, "Unclaim", mock.Anything, "a@emmegi.example")
}

func TestConfirm_AcceptResetsExistingUser(t *testing.T) {
	verifications := new(mockVerificationRepo)
	users := new(mockUserRepo)
	grants := new(mockGrantRepo)
	mailer := new(mockMailer)
	svc := newTestService(verifications, users, grants, mailer)

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "tok", Kind: domain.KindAdminInvite, CreatedAt: time.Now(),
	}, nil)
	verifications.On("Claim", mock.Anything, "a@emmegi.example", "tok", domain.KindAdminInvite).Return(nil)
	users.On("GetByEmail", mock.Anything, "a@emmegi.example").Return(&domain.User{
		UserID: "u1", Email: "a@emmegi.example", Role: domain.RoleUser,
	}, nil)
	users.On("Update", mock.Anything, "u1", mock.Anything).Return(nil)
	grants.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Confirm(context.Background(), "a@emmegi.example", "tok", "accept")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	users.AssertCalled(t, "Update", mock.Anything, "u1", mock.Anything)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestListAdmins_JoinsGrantsWithUsers(t *testing.T) {
	users := new(mockUserRepo)
	grants := new(mockGrantRepo)
	svc := newTestService(new(mockVerificationRepo), users, grants, new(mockMailer))

	grants.On("ListByRole", mock.Anything, domain.RoleAdmin).Return([]domain.RoleGrant{
		{UserID: "u1", Role: domain.RoleAdmin, GrantedBy: "invitation"},
		{UserID: "gone", Role: domain.RoleAdmin, GrantedBy: "invitation"},
	}, nil)
	users.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID: "u1", Email: "a@emmegi.example", FirstName: "Anna",
	}, nil)
	users.On("Get", mock.Anything, "gone").Return(nil, domain.ErrNotFound)

	admins, err := svc.ListAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "a@emmegi.example", admins[0].Email)
	assert.Equal(t, "invitation", admins[0].GrantedBy)
}

func TestConfirm_UnknownAction(t *testing.T) {
	verifications := new(mockVerificationRepo)
	svc := newTestService(verifications, new(mockUserRepo), new(mockGrantRepo), new(mockMailer))

	verifications.On("Get", mock.Anything, "a@emmegi.example").Return(&domain.VerificationSession{
		Email: "a@emmegi.example", Code: "tok", Kind: domain.KindAdminInvite, CreatedAt: time.Now(),
	}, nil)

	_, err := svc.Confirm(context.Background(), "a@emmegi.example", "tok", "maybe")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}
