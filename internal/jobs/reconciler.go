package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/code-brew-house/brewy-backend/internal/cache"
	"github.com/code-brew-house/brewy-backend/internal/store"
	"github.com/code-brew-house/brewy-backend/pkg/models"
	"github.com/google/uuid"
)

// CallbackPayload is the asynchronous result posted back by the workflow engine.
type CallbackPayload struct {
	JobID      string         `json:"jobId"`
	Status     string         `json:"status"`
	Transcript *string        `json:"transcript,omitempty"`
	Sentiment  *string        `json:"sentiment,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Error      *string        `json:"error,omitempty"`
}

// callbackOutcome is the parsed form of a callback: exactly one of the two
// variants, or neither when the status is unrecognized.
type callbackOutcome interface{ isOutcome() }

type completedOutcome struct {
	Transcript string
	Sentiment  string
	Metadata   map[string]any
}

type failedOutcome struct {
	Cause string
}

func (completedOutcome) isOutcome() {}
func (failedOutcome) isOutcome()    {}

const (
	defaultFailureCause = "analysis failed in workflow engine"
	unknownStatusCause  = "unknown status in callback"
	missingFieldsCause  = "callback missing transcript or sentiment"
)

// Reconciler absorbs the workflow engine's callbacks into durable job state.
// It is the sole place where duplicate or out-of-order external signals are
// tolerated: a well-formed repeat never fails, and a late contradictory
// signal never reverts a terminal state.
type Reconciler struct {
	store store.Store
	cache cache.Cache
}

// NewReconciler creates a Reconciler.
func NewReconciler(s store.Store, c cache.Cache) *Reconciler {
	return &Reconciler{store: s, cache: c}
}

// Reconcile applies one callback to its job. Returns ErrJobNotFound,
// ErrValidationFailed, or ErrUnknownStatus; duplicates of a terminal signal
// return nil.
func (r *Reconciler) Reconcile(ctx context.Context, p CallbackPayload) error {
	jobID, err := uuid.Parse(p.JobID)
	if err != nil {
		return ErrJobNotFound
	}

	switch outcome := parseOutcome(p).(type) {
	case completedOutcome:
		return r.reconcileCompleted(ctx, jobID, outcome)
	case failedOutcome:
		return r.reconcileFailed(ctx, jobID, outcome)
	default:
		return r.reconcileUnknown(ctx, jobID)
	}
}

// parseOutcome maps the wire payload onto a tagged outcome. Field presence is
// not validated here; reconcileCompleted owns that so the job can still be
// driven to failed on a malformed completion.
func parseOutcome(p CallbackPayload) callbackOutcome {
	switch p.Status {
	case models.JobStatusCompleted:
		var transcript, sentiment string
		if p.Transcript != nil {
			transcript = *p.Transcript
		}
		if p.Sentiment != nil {
			sentiment = *p.Sentiment
		}
		return completedOutcome{Transcript: transcript, Sentiment: sentiment, Metadata: p.Metadata}
	case models.JobStatusFailed:
		cause := defaultFailureCause
		if p.Error != nil && *p.Error != "" {
			cause = *p.Error
		}
		return failedOutcome{Cause: cause}
	default:
		return nil
	}
}

func (r *Reconciler) reconcileCompleted(ctx context.Context, jobID uuid.UUID, outcome completedOutcome) error {
	job, err := r.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	if outcome.Transcript == "" || outcome.Sentiment == "" {
		if err := r.applyTerminal(ctx, job, models.JobStatusFailed,
			store.WithErrorMessage(missingFieldsCause)); err != nil {
			return err
		}
		return ErrValidationFailed
	}

	// A job that already failed (dispatch error, earlier failure callback,
	// reaper) keeps its outcome; the late completion is absorbed without
	// creating a result.
	if job.Status == models.JobStatusFailed {
		slog.Info("completed callback for failed job ignored", "job_id", jobID)
		return nil
	}

	// Check-then-act idempotency: at most one result per job.
	if _, err := r.store.GetAnalysisResultByJobID(ctx, jobID); err == nil {
		slog.Info("duplicate completed callback, result already stored", "job_id", jobID)
	} else if errors.Is(err, store.ErrNotFound) {
		result := &models.AnalysisResult{
			ID:             uuid.New(),
			JobID:          jobID,
			OrganizationID: job.OrganizationID,
			Transcript:     outcome.Transcript,
			Sentiment:      outcome.Sentiment,
			Metadata:       outcome.Metadata,
			CreatedAt:      time.Now().UTC(),
		}
		if err := r.store.CreateAnalysisResult(ctx, result); err != nil {
			return fmt.Errorf("create analysis result: %w", err)
		}
	} else {
		return fmt.Errorf("check existing result: %w", err)
	}

	return r.applyTerminal(ctx, job, models.JobStatusCompleted)
}

func (r *Reconciler) reconcileFailed(ctx context.Context, jobID uuid.UUID, outcome failedOutcome) error {
	job, err := r.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	return r.applyTerminal(ctx, job, models.JobStatusFailed,
		store.WithErrorMessage(outcome.Cause))
}

func (r *Reconciler) reconcileUnknown(ctx context.Context, jobID uuid.UUID) error {
	job, err := r.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := r.applyTerminal(ctx, job, models.JobStatusFailed,
		store.WithErrorMessage(unknownStatusCause)); err != nil {
		return err
	}
	return ErrUnknownStatus
}

func (r *Reconciler) getJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// applyTerminal drives the job into a terminal state. A transition rejected
// because the job is already terminal degrades to a no-op: the reconciler is
// the one legitimate source of duplicate terminal signals and must swallow
// repeats rather than raise. Invalid transitions on non-terminal jobs still
// propagate.
func (r *Reconciler) applyTerminal(ctx context.Context, job *models.Job, status string, opts ...store.JobUpdateOption) error {
	err := r.store.UpdateJobStatus(ctx, job.ID, status, opts...)
	if err == nil {
		_ = r.cache.SetJobStatus(ctx, job.ID, status, statusCacheTTL)
		return nil
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		current, cerr := r.store.GetJob(ctx, job.ID)
		if cerr == nil && current.IsTerminal() {
			slog.Info("terminal signal for settled job absorbed",
				"job_id", job.ID, "current", current.Status, "signal", status)
			return nil
		}
		return err
	}
	return fmt.Errorf("transition job: %w", err)
}
