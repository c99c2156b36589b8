// Package models contains shared data models used across the Brewy codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the multi-tenancy boundary. Every file, job, and result
// belongs to exactly one organization.
type Organization struct {
	ID   uuid.UUID `db:"id"   json:"id"`
	Name string    `db:"name" json:"name"`
	// MaxConcurrentJobs bounds the number of non-terminal jobs the
	// organization may have at once. Nil means "use the system default".
	MaxConcurrentJobs *int      `db:"max_concurrent_jobs" json:"max_concurrent_jobs,omitempty"`
	CreatedAt         time.Time `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"          json:"updated_at"`
}
