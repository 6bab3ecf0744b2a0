package handler

import (
	"context"
	"net/http"

	"github.com/emmegi/catalog-api/internal/application/invite"
	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/emmegi/catalog-api/internal/pkg/validate"
)

type InviteService interface {
	Issue(ctx context.Context, email, invitedBy string) error
	Confirm(ctx context.Context, email, token, action string) (*invite.ConfirmResult, error)
	ListAdmins(ctx context.Context) ([]invite.Admin, error)
}

type InviteHandler struct {
	invites InviteService
}

func NewInviteHandler(invites InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

type createInviteRequest struct {
	Email       string `json:"email"`
	InviterName string `json:"inviter_name"`
}

// Create issues an admin invitation. Admin only.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validate.Email(req.Email); err != nil {
		writeError(w, domain.ErrBadRequest)
		return
	}

	// The inviter name is display text for the invitation email; when the
	// caller leaves it out fall back to a neutral placeholder.
	invitedBy := req.InviterName
	if invitedBy == "" {
		invitedBy = "an administrator"
	}

	if err := h.invites.Issue(r.Context(), req.Email, invitedBy); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invitation sent"})
}

type confirmInviteRequest struct {
	Email  string `json:"email"`
	Token  string `json:"token"`
	Action string `json:"action"`
}

// Confirm resolves an invitation link. The email links are plain GETs with
// query parameters; clients may also POST a JSON body.
func (h *InviteHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmInviteRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = confirmInviteRequest{Email: q.Get("email"), Token: q.Get("token"), Action: q.Get("action")}
	} else if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" || req.Token == "" || req.Action == "" {
		writeError(w, domain.ErrBadRequest)
		return
	}

	result, err := h.invites.Confirm(r.Context(), req.Email, req.Token, req.Action)
	if err != nil {
		writeError(w, err)
		return
	}

	if !result.Accepted {
		writeJSON(w, http.StatusOK, map[string]string{"status": "invitation declined"})
		return
	}
	// The one-time password is shown exactly once and must be changed on
	// first login.
	writeJSON(w, http.StatusOK, map[string]string{
		"status":            "invitation accepted",
		"one_time_password": result.OneTimePassword,
	})
}

// ListAdmins returns the current administrators. Admin only.
func (h *InviteHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.invites.ListAdmins(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, admins)
}
