package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	mw "github.com/code-brew-house/brewy-backend/internal/api/middleware"
	"github.com/code-brew-house/brewy-backend/internal/api/response"
	"github.com/code-brew-house/brewy-backend/internal/jobs"
	"github.com/code-brew-house/brewy-backend/pkg/models"
	"github.com/google/uuid"
)

// multipart form metadata on top of the file itself
const multipartOverhead = 1 << 20

// Ingestor defines the interface the upload handler depends on.
type Ingestor interface {
	Ingest(ctx context.Context, orgID uuid.UUID, in jobs.UploadInput) (*models.Job, error)
}

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/audio.
// The request is multipart with the audio under the "file" field. A job is
// created and dispatched synchronously; the response is 202 with the job.
func NewUploadHandler(svc Ingestor, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := mw.GetOrgID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing organization", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Multipart field \"file\" is required", nil)
			return
		}
		defer file.Close()

		if header.Size > maxBytes {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				"Uploaded file exceeds the size limit", nil)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "audio/") {
			response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
				"Only audio uploads are accepted", map[string]any{"content_type": contentType})
			return
		}

		job, err := svc.Ingest(r.Context(), orgID, jobs.UploadInput{
			Filename:    header.Filename,
			ContentType: contentType,
			Size:        header.Size,
			Body:        file,
		})
		if err != nil {
			writeJobError(w, job, err)
			return
		}

		response.Accepted(w, job)
	}
}

// writeJobError maps lifecycle errors onto API responses. A dispatch failure
// still reports the persisted failed job so callers can inspect it.
func writeJobError(w http.ResponseWriter, job *models.Job, err error) {
	switch {
	case errors.Is(err, jobs.ErrOrganizationNotFound):
		response.Error(w, http.StatusNotFound, "ORG_NOT_FOUND", "Organization not found", nil)
	case errors.Is(err, jobs.ErrAdmissionDenied):
		response.Error(w, http.StatusTooManyRequests, "LIMIT_REACHED", err.Error(), nil)
	case errors.Is(err, jobs.ErrFileNotOwned):
		response.Error(w, http.StatusForbidden, "FILE_NOT_OWNED",
			"File does not belong to this organization", nil)
	case errors.Is(err, jobs.ErrDispatchFailed):
		var details any
		if job != nil {
			details = map[string]any{"job_id": job.ID}
		}
		response.Error(w, http.StatusBadGateway, "DISPATCH_FAILED",
			"Failed to trigger processing", details)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to create job", nil)
	}
}
