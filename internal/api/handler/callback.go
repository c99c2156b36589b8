package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/code-brew-house/brewy-backend/internal/api/response"
	"github.com/code-brew-house/brewy-backend/internal/jobs"
)

// Reconciler defines the interface the callback handler depends on.
type Reconciler interface {
	Reconcile(ctx context.Context, p jobs.CallbackPayload) error
}

// NewCallbackHandler returns an http.HandlerFunc for POST /api/v1/callbacks/analysis.
// The workflow engine posts results here; duplicates are acknowledged with 200.
func NewCallbackHandler(rec Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload jobs.CallbackPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if payload.JobID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobId is required", nil)
			return
		}

		err := rec.Reconcile(r.Context(), payload)
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
		case errors.Is(err, jobs.ErrValidationFailed):
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
				"Completed callback requires transcript and sentiment", nil)
		case errors.Is(err, jobs.ErrUnknownStatus):
			response.Error(w, http.StatusBadRequest, "UNKNOWN_STATUS",
				"Callback status must be completed or failed", nil)
		case err != nil:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to reconcile callback", nil)
		default:
			response.JSON(w, map[string]string{"status": "reconciled"})
		}
	}
}
