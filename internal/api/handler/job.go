package handler

import (
	"context"
	"errors"
	"net/http"

	mw "github.com/code-brew-house/brewy-backend/internal/api/middleware"
	"github.com/code-brew-house/brewy-backend/internal/api/response"
	"github.com/code-brew-house/brewy-backend/internal/jobs"
	"github.com/code-brew-house/brewy-backend/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// JobReader defines the read-model interface the job handlers depend on.
type JobReader interface {
	Status(ctx context.Context, jobID, orgID uuid.UUID) (*models.Job, error)
	Result(ctx context.Context, jobID, orgID uuid.UUID) (*models.AnalysisResult, error)
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewJobStatusHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, jobID, ok := jobRequestIDs(w, r)
		if !ok {
			return
		}

		job, err := svc.Status(r.Context(), jobID, orgID)
		if errors.Is(err, jobs.ErrJobNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch job", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewJobResultHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}/result.
func NewJobResultHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, jobID, ok := jobRequestIDs(w, r)
		if !ok {
			return
		}

		result, err := svc.Result(r.Context(), jobID, orgID)
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
		case errors.Is(err, jobs.ErrResultNotFound):
			response.Error(w, http.StatusNotFound, "RESULT_NOT_FOUND",
				"No analysis result for this job yet", nil)
		case err != nil:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch result", nil)
		default:
			response.JSON(w, result)
		}
	}
}

func jobRequestIDs(w http.ResponseWriter, r *http.Request) (orgID, jobID uuid.UUID, ok bool) {
	orgID, found := mw.GetOrgID(r)
	if !found {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing organization", nil)
		return uuid.Nil, uuid.Nil, false
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, jobID, true
}
