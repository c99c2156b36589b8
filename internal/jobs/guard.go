package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/code-brew-house/brewy-backend/internal/store"
	"github.com/code-brew-house/brewy-backend/pkg/models"
	"github.com/google/uuid"
)

// Decision is the outcome of an admission check. Current and Max are carried
// for diagnostics either way.
type Decision struct {
	Allowed bool
	Current int
	Max     int
}

// LimitGuard bounds concurrent non-terminal jobs per organization.
// Admit is a read-only check; the race-free enforcement lives in the store's
// CreateJobWithinLimit, which recounts under a tenant-scoped lock.
type LimitGuard struct {
	store      store.Store
	defaultMax int
}

// NewLimitGuard creates a LimitGuard. defaultMax applies to organizations
// without a configured limit.
func NewLimitGuard(s store.Store, defaultMax int) *LimitGuard {
	return &LimitGuard{store: s, defaultMax: defaultMax}
}

// Admit counts the organization's active (pending or processing) jobs and
// compares against its limit. Returns ErrOrganizationNotFound if the
// organization does not exist.
func (g *LimitGuard) Admit(ctx context.Context, orgID uuid.UUID) (Decision, error) {
	org, err := g.store.GetOrganization(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{}, ErrOrganizationNotFound
	}
	if err != nil {
		return Decision{}, fmt.Errorf("look up organization: %w", err)
	}

	count, err := g.store.CountActiveJobs(ctx, orgID)
	if err != nil {
		return Decision{}, fmt.Errorf("count active jobs: %w", err)
	}

	max := g.LimitFor(org)
	return Decision{Allowed: count < max, Current: count, Max: max}, nil
}

// LimitFor resolves the organization's effective concurrency limit.
func (g *LimitGuard) LimitFor(org *models.Organization) int {
	if org.MaxConcurrentJobs != nil && *org.MaxConcurrentJobs > 0 {
		return *org.MaxConcurrentJobs
	}
	return g.defaultMax
}
