package handler

import (
	"context"
	"net/http"
)

type VerificationService interface {
	Send(ctx context.Context, email, kind string) error
	Verify(ctx context.Context, email, code, kind string) error
	ChangePassword(ctx context.Context, email, newPassword string) error
}

type VerificationHandler struct {
	verifications VerificationService
}

func NewVerificationHandler(verifications VerificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

type sendCodeRequest struct {
	Email string `json:"email"`
	Kind  string `json:"kind"`
}

func (h *VerificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.verifications.Send(r.Context(), req.Email, req.Kind); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code sent"})
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	Kind  string `json:"kind"`
}

func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.verifications.Verify(r.Context(), req.Email, req.OTP, req.Kind); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "code verified"})
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

func (h *VerificationHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.verifications.ChangePassword(r.Context(), req.Email, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
