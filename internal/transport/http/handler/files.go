package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/emmegi/catalog-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

const maxUploadSize = 10 << 20 // 10 MiB

type FileService interface {
	Upload(ctx context.Context, userID, filename string, size int64, r io.Reader) (*domain.File, error)
	Get(ctx context.Context, fileID string) (*domain.File, error)
	Delete(ctx context.Context, fileID string) error
}

type FileHandler struct {
	files FileService
}

func NewFileHandler(files FileService) *FileHandler {
	return &FileHandler{files: files}
}

// Upload accepts a multipart form with a "file" field. Admin only.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, domain.ErrBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.ErrBadRequest)
		return
	}
	defer file.Close()

	f, err := h.files.Upload(r.Context(), claims.UserID, header.Filename, header.Size, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.files.Get(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.files.Delete(r.Context(), chi.URLParam(r, "fileID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
