package models

import (
	"time"

	"github.com/google/uuid"
)

// AudioFile is the record of an uploaded audio file stored in the blob store.
// The URL points at the object the workflow engine downloads for processing.
type AudioFile struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	ObjectKey      string    `db:"object_key"      json:"-"`
	URL            string    `db:"url"             json:"url"`
	SizeBytes      int64     `db:"size_bytes"      json:"size_bytes"`
	MimeType       string    `db:"mime_type"       json:"mime_type"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}
