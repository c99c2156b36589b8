package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisResult holds the workflow engine's output for a completed job.
// At most one result exists per job; the callback reconciler enforces this
// with a check before insert, there is no uniqueness constraint in the table.
type AnalysisResult struct {
	ID             uuid.UUID      `db:"id"              json:"id"`
	JobID          uuid.UUID      `db:"job_id"          json:"job_id"`
	OrganizationID uuid.UUID      `db:"organization_id" json:"organization_id"`
	Transcript     string         `db:"transcript"      json:"transcript"`
	Sentiment      string         `db:"sentiment"       json:"sentiment"`
	Metadata       map[string]any `db:"metadata"        json:"metadata,omitempty"`
	CreatedAt      time.Time      `db:"created_at"      json:"created_at"`
}
