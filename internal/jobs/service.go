// Package jobs implements the job lifecycle core: admission control, the
// pending/processing/completed/failed state machine, webhook dispatch to the
// workflow engine, and idempotent reconciliation of its callbacks.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/code-brew-house/brewy-backend/internal/cache"
	"github.com/code-brew-house/brewy-backend/internal/storage"
	"github.com/code-brew-house/brewy-backend/internal/store"
	"github.com/code-brew-house/brewy-backend/pkg/models"
	"github.com/google/uuid"
)

const statusCacheTTL = 30 * time.Minute

// Service is the job lifecycle engine. All job creation and state transitions
// go through here or through the Reconciler; no other component writes job rows.
type Service struct {
	store      store.Store
	cache      cache.Cache
	objects    storage.ObjectStore
	guard      *LimitGuard
	dispatcher Dispatcher
}

// NewService creates the lifecycle engine.
func NewService(s store.Store, c cache.Cache, o storage.ObjectStore, g *LimitGuard, d Dispatcher) *Service {
	return &Service{store: s, cache: c, objects: o, guard: g, dispatcher: d}
}

// UploadInput describes an incoming audio upload.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Ingest stores the uploaded audio in the blob store, records the file, and
// creates a job for it. The returned job reflects the dispatch outcome.
func (s *Service) Ingest(ctx context.Context, orgID uuid.UUID, in UploadInput) (*models.Job, error) {
	fileID := uuid.New()
	key := fmt.Sprintf("audio/%s/%s%s", orgID, fileID, path.Ext(in.Filename))

	url, err := s.objects.Put(ctx, key, in.Body, in.Size, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}

	file := &models.AudioFile{
		ID:             fileID,
		OrganizationID: orgID,
		ObjectKey:      key,
		URL:            url,
		SizeBytes:      in.Size,
		MimeType:       in.ContentType,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateAudioFile(ctx, file); err != nil {
		return nil, fmt.Errorf("record audio file: %w", err)
	}

	return s.Create(ctx, fileID, orgID)
}

// Create admits, creates, and dispatches a job for an already-recorded file.
//
// Admission is checked twice: the guard gives a fast deny with diagnostics,
// and CreateJobWithinLimit recounts under a tenant-scoped lock so concurrent
// requests cannot slip past the limit between the check and the insert.
//
// Dispatch failure still leaves a failed job row behind; callers must treat
// creation as having a visible side effect even when it returns ErrDispatchFailed.
func (s *Service) Create(ctx context.Context, fileID, orgID uuid.UUID) (*models.Job, error) {
	dec, err := s.guard.Admit(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, fmt.Errorf("%w: %d of %d jobs active", ErrAdmissionDenied, dec.Current, dec.Max)
	}

	file, err := s.store.GetAudioFile(ctx, fileID, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrFileNotOwned
	}
	if err != nil {
		return nil, fmt.Errorf("look up file: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:             uuid.New(),
		OrganizationID: orgID,
		FileID:         fileID,
		Status:         models.JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	count, err := s.store.CreateJobWithinLimit(ctx, job, dec.Max)
	if errors.Is(err, store.ErrLimitReached) {
		return nil, fmt.Errorf("%w: %d of %d jobs active", ErrAdmissionDenied, count, dec.Max)
	}
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, statusCacheTTL)

	if err := s.dispatcher.Dispatch(ctx, DispatchPayload{
		JobID:     job.ID,
		FileURL:   file.URL,
		Timestamp: dispatchTimestamp(now),
	}); err != nil {
		slog.Error("webhook dispatch failed", "job_id", job.ID, "error", err)
		cause := fmt.Sprintf("dispatch failed: %v", err)
		if terr := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed,
			store.WithErrorMessage(cause)); terr != nil {
			slog.Error("failed to mark job failed after dispatch error", "job_id", job.ID, "error", terr)
		}
		_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusFailed, statusCacheTTL)
		return s.reload(ctx, job), ErrDispatchFailed
	}

	// Processing starts only on a confirmed dispatch; an unconfirmed job
	// stays pending and keeps occupying a concurrency slot.
	if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusProcessing); err != nil {
		return nil, fmt.Errorf("mark job processing: %w", err)
	}
	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusProcessing, statusCacheTTL)

	return s.reload(ctx, job), nil
}

// Status returns the job scoped to the organization.
func (s *Service) Status(ctx context.Context, jobID, orgID uuid.UUID) (*models.Job, error) {
	job, err := s.store.GetJobForOrg(ctx, jobID, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Result returns the analysis result for a job scoped to the organization.
func (s *Service) Result(ctx context.Context, jobID, orgID uuid.UUID) (*models.AnalysisResult, error) {
	if _, err := s.Status(ctx, jobID, orgID); err != nil {
		return nil, err
	}
	result, err := s.store.GetAnalysisResultByJobID(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// FileURL returns a presigned download URL for a file the organization owns.
// URLs are cached for a fraction of their validity.
func (s *Service) FileURL(ctx context.Context, fileID, orgID uuid.UUID, expiry time.Duration) (string, error) {
	file, err := s.store.GetAudioFile(ctx, fileID, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrFileNotOwned
	}
	if err != nil {
		return "", fmt.Errorf("look up file: %w", err)
	}

	if cached, ok, _ := s.cache.Get(ctx, cache.FileURLKey(fileID)); ok {
		return string(cached), nil
	}

	url, err := s.objects.PresignGet(ctx, file.ObjectKey, expiry)
	if err != nil {
		return "", fmt.Errorf("presign file: %w", err)
	}
	_ = s.cache.Set(ctx, cache.FileURLKey(fileID), []byte(url), expiry/2)
	return url, nil
}

// reload re-reads the job so callers see the post-transition timestamps.
// Falls back to the in-memory copy if the read fails.
func (s *Service) reload(ctx context.Context, job *models.Job) *models.Job {
	fresh, err := s.store.GetJob(ctx, job.ID)
	if err != nil {
		slog.Warn("reload job after transition", "job_id", job.ID, "error", err)
		return job
	}
	return fresh
}
