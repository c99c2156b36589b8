package jobs_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/code-brew-house/brewy-backend/internal/store"
	"github.com/code-brew-house/brewy-backend/pkg/models"
	"github.com/google/uuid"
)

// memStore is an in-memory store.Store with the same transition semantics as
// the Postgres implementation, for exercising the lifecycle core without a
// database.
type memStore struct {
	mu      sync.Mutex
	orgs    map[uuid.UUID]*models.Organization
	files   map[uuid.UUID]*models.AudioFile
	jobs    map[uuid.UUID]*models.Job
	results map[uuid.UUID]*models.AnalysisResult // keyed by job ID

	failCreateResult error
}

func newMemStore() *memStore {
	return &memStore{
		orgs:    make(map[uuid.UUID]*models.Organization),
		files:   make(map[uuid.UUID]*models.AudioFile),
		jobs:    make(map[uuid.UUID]*models.Job),
		results: make(map[uuid.UUID]*models.AnalysisResult),
	}
}

func (m *memStore) addOrg(maxJobs *int) *models.Organization {
	m.mu.Lock()
	defer m.mu.Unlock()
	org := &models.Organization{
		ID:                uuid.New(),
		Name:              fmt.Sprintf("org-%d", len(m.orgs)),
		MaxConcurrentJobs: maxJobs,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	m.orgs[org.ID] = org
	return org
}

func (m *memStore) addFile(orgID uuid.UUID) *models.AudioFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &models.AudioFile{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ObjectKey:      "audio/test.mp3",
		URL:            "http://storage.local/brewy-audio/test.mp3",
		SizeBytes:      1024,
		MimeType:       "audio/mpeg",
		CreatedAt:      time.Now().UTC(),
	}
	m.files[f.ID] = f
	return f
}

func (m *memStore) addJob(orgID, fileID uuid.UUID, status string) *models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	j := &models.Job{
		ID:             uuid.New(),
		OrganizationID: orgID,
		FileID:         fileID,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status != models.JobStatusPending {
		started := now
		j.StartedAt = &started
	}
	if models.IsTerminalStatus(status) {
		completed := now
		j.CompletedAt = &completed
	}
	m.jobs[j.ID] = j
	return j
}

func (m *memStore) Ping(_ context.Context) error { return nil }

func (m *memStore) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return org, nil
}

func (m *memStore) GetDefaultOrganization(_ context.Context) (*models.Organization, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (m *memStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (m *memStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }

func (m *memStore) CreateAudioFile(_ context.Context, f *models.AudioFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memStore) GetAudioFile(_ context.Context, id uuid.UUID, orgID uuid.UUID) (*models.AudioFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	return f, nil
}

func (m *memStore) CountActiveJobs(_ context.Context, orgID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActiveLocked(orgID), nil
}

func (m *memStore) countActiveLocked(orgID uuid.UUID) int {
	count := 0
	for _, j := range m.jobs {
		if j.OrganizationID == orgID && !j.IsTerminal() {
			count++
		}
	}
	return count
}

func (m *memStore) CreateJobWithinLimit(_ context.Context, job *models.Job, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.countActiveLocked(job.OrganizationID)
	if count >= max {
		return count, store.ErrLimitReached
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return count, nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) GetJobForOrg(_ context.Context, id uuid.UUID, orgID uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) ListStaleJobs(_ context.Context, olderThan time.Time, limit int) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.jobs {
		if !j.IsTerminal() && j.UpdatedAt.Before(olderThan) {
			cp := *j
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

var memTransitions = map[string][]string{
	models.JobStatusPending:    {models.JobStatusProcessing, models.JobStatusFailed},
	models.JobStatusProcessing: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (m *memStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return store.ErrNotFound
	}

	valid := false
	for _, a := range memTransitions[j.Status] {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, j.Status, status)
	}

	now := time.Now().UTC()
	j.Status = status
	j.UpdatedAt = now
	if status == models.JobStatusProcessing {
		j.StartedAt = &now
	}
	if models.IsTerminalStatus(status) {
		j.CompletedAt = &now
	}
	params := &store.JobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}
	if params.ErrorMessage != nil {
		j.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (m *memStore) CreateAnalysisResult(_ context.Context, r *models.AnalysisResult) error {
	if m.failCreateResult != nil {
		return m.failCreateResult
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.results[r.JobID] = &cp
	return nil
}

func (m *memStore) GetAnalysisResultByJobID(_ context.Context, jobID uuid.UUID) (*models.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}
