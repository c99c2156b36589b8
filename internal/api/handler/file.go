package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	mw "github.com/code-brew-house/brewy-backend/internal/api/middleware"
	"github.com/code-brew-house/brewy-backend/internal/api/response"
	"github.com/code-brew-house/brewy-backend/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// FileURLProvider defines the interface the file URL handler depends on.
type FileURLProvider interface {
	FileURL(ctx context.Context, fileID, orgID uuid.UUID, expiry time.Duration) (string, error)
}

// NewFileURLHandler returns an http.HandlerFunc for GET /api/v1/files/{fileID}/url.
func NewFileURLHandler(svc FileURLProvider, expiry time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := mw.GetOrgID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing organization", nil)
			return
		}

		fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "fileID must be a valid UUID", nil)
			return
		}

		url, err := svc.FileURL(r.Context(), fileID, orgID, expiry)
		if errors.Is(err, jobs.ErrFileNotOwned) {
			// Files outside the caller's organization look like missing files.
			response.Error(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate URL", nil)
			return
		}

		response.JSON(w, map[string]any{
			"url":        url,
			"expires_in": int(expiry.Seconds()),
		})
	}
}
