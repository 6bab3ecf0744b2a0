package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emmegi/catalog-api/internal/application/invite"
	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInviteService struct{ mock.Mock }

func (m *mockInviteService) Issue(ctx context.Context, email, invitedBy string) error {
	return m.Called(ctx, email, invitedBy).Error(0)
}
func (m *mockInviteService) Confirm(ctx context.Context, email, token, action string) (*invite.ConfirmResult, error) {
	args := m.Called(ctx, email, token, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invite.ConfirmResult), args.Error(1)
}
func (m *mockInviteService) ListAdmins(ctx context.Context) ([]invite.Admin, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invite.Admin), args.Error(1)
}

func TestInviteHandler_Create(t *testing.T) {
	svc := new(mockInviteService)
	h := NewInviteHandler(svc)
	svc.On("Issue", mock.Anything, "new.admin@emmegi.example", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/invites",
		strings.NewReader(`{"email":"new.admin@emmegi.example"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestInviteHandler_Create_DefaultInviterName(t *testing.T) {
	svc := new(mockInviteService)
	h := NewInviteHandler(svc)
	svc.On("Issue", mock.Anything, "new.admin@emmegi.example", "an administrator").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/invites",
		strings.NewReader(`{"email":"new.admin@emmegi.example"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	svc.AssertCalled(t, "Issue", mock.Anything, "new.admin@emmegi.example", "an administrator")
}

func TestInviteHandler_Create_ExplicitInviterName(t *testing.T) {
	svc := new(mockInviteService)
	h := NewInviteHandler(svc)
	svc.On("Issue", mock.Anything, "new.admin@emmegi.example", "Giulia").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/invites",
		strings.NewReader(`{"email":"new.admin@emmegi.example","inviter_name":"Giulia"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	svc.AssertCalled(t, "Issue", mock.Anything, "new.admin@emmegi.example", "Giulia")
}

func TestInviteHandler_Create_InvalidEmail(t *testing.T) {
	svc := new(mockInviteService)
	h := NewInviteHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/invites", strings.NewReader(`{"email":"nope"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
}

func TestInviteHandler_Confirm_AcceptViaEmailLink(t *testing.T) {
	svc := new(mockInviteService)
	h := NewInviteHandler(svc)
	svc.On("Confirm", mock.Anything, "a@emmegi.example", "tok", "accept").
		Return(&invite.ConfirmResult{Accepted: true, OneTimePassword: "a1b2c3d4"}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/invites/confirm?email=a@emmegi.example&token=tok&action=accept", nil)
	rec := httptest.NewRecorder()
	h.Confirm(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a1b2c3d4", body["one_time_password"])
}

func TestInviteHandler_Confirm_Decline(t *testing.T) {
	svc := new(mockInviteService)
	h := NewInviteHandler(svc)
	svc.On("Confirm", mock.Anything, "a@emmegi.example", "tok", "decline").
		Return(&invite.ConfirmResult{Accepted: false}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/invites/confirm",
		strings.NewReader(`{"email":"a@emmegi.example","token":"tok","action":"decline"}`))
	rec := httptest.NewRecorder()
	h.Confirm(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "one_time_password")
}

func TestInviteHandler_Confirm_ExpiredToken(t *testing.T) {
	svc := new(mockInviteService)
	h := NewInviteHandler(svc)
	svc.On("Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrExpired)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/invites/confirm?email=a@emmegi.example&token=tok&action=accept", nil)
	rec := httptest.NewRecorder()
	h.Confirm(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestInviteHandler_Confirm_MissingParams(t *testing.T) {
	svc := new(mockInviteService)
	h := NewInviteHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/invites/confirm?email=a@emmegi.example", nil)
	rec := httptest.NewRecorder()
	h.Confirm(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
