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
)

const reaperBatchSize = 100

// Reaper fails jobs stuck in a non-terminal state longer than the configured
// timeout, freeing their tenant's concurrency slots. It only runs when a
// timeout is configured; by default a job with no callback waits forever.
type Reaper struct {
	store    store.Store
	cache    cache.Cache
	timeout  time.Duration
	interval time.Duration
}

// NewReaper creates a Reaper. timeout must be positive; interval defaults to
// one minute when zero.
func NewReaper(s store.Store, c cache.Cache, timeout, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{store: s, cache: c, timeout: timeout, interval: interval}
}

// Run sweeps on a ticker until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("stale job reaper started", "timeout", r.timeout, "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				slog.Error("reaper sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("reaped stale jobs", "count", n)
			}
		}
	}
}

// Sweep fails every non-terminal job untouched for longer than the timeout.
// Returns the number of jobs failed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.timeout)
	stale, err := r.store.ListStaleJobs(ctx, cutoff, reaperBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}

	reaped := 0
	cause := fmt.Sprintf("job timed out after %s waiting for analysis callback", r.timeout)
	for _, job := range stale {
		err := r.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed,
			store.WithErrorMessage(cause))
		if errors.Is(err, store.ErrInvalidTransition) {
			// A callback settled the job between the list and the update.
			continue
		}
		if err != nil {
			slog.Error("failed to reap job", "job_id", job.ID, "error", err)
			continue
		}
		_ = r.cache.SetJobStatus(ctx, job.ID, models.JobStatusFailed, statusCacheTTL)
		reaped++
	}
	return reaped, nil
}
