package store

import (
	"context"
	"errors"
	"time"

	"github.com/code-brew-house/brewy-backend/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidTransition is returned when a job status update would violate
// the lifecycle state machine. Callers inspect it with errors.Is.
var ErrInvalidTransition = errors.New("invalid job status transition")

// ErrLimitReached is returned by CreateJobWithinLimit when the organization
// already has max non-terminal jobs.
var ErrLimitReached = errors.New("concurrent job limit reached")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetDefaultOrganization(ctx context.Context) (*models.Organization, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, orgID uuid.UUID) error

	CreateAudioFile(ctx context.Context, file *models.AudioFile) error
	GetAudioFile(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.AudioFile, error)

	// CountActiveJobs returns the number of jobs for the organization whose
	// status is pending or processing at the instant of the query.
	CountActiveJobs(ctx context.Context, orgID uuid.UUID) (int, error)
	// CreateJobWithinLimit inserts the job only if the organization has fewer
	// than max non-terminal jobs. Count and insert happen inside one
	// transaction serialized per organization, so concurrent admissions for
	// the same tenant cannot slip past the limit. Returns the active count
	// observed before the insert; on ErrLimitReached no row is written.
	CreateJobWithinLimit(ctx context.Context, job *models.Job, max int) (int, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetJobForOrg(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.Job, error)
	ListStaleJobs(ctx context.Context, olderThan time.Time, limit int) ([]*models.Job, error)
	// UpdateJobStatus applies a lifecycle transition, stamping started_at /
	// completed_at as appropriate. The read-validate-write runs under a row
	// lock so concurrent writers for the same job serialize; the loser of a
	// terminal race gets ErrInvalidTransition.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error

	CreateAnalysisResult(ctx context.Context, result *models.AnalysisResult) error
	GetAnalysisResultByJobID(ctx context.Context, jobID uuid.UUID) (*models.AnalysisResult, error)
}

// JobUpdateParams carries the optional fields of a status update. Exported so
// alternative Store implementations can apply JobUpdateOptions.
type JobUpdateParams struct {
	ErrorMessage *string
}

type JobUpdateOption func(*JobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdateParams) {
		p.ErrorMessage = &msg
	}
}
