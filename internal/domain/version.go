package domain

import (
	"time"

	"github.com/google/uuid"
)

type VersionStatus string

const (
	VersionStatusPending   VersionStatus = "pending"
	VersionStatusCommitted VersionStatus = "committed"
)

type Version struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	DocumentID    uuid.UUID     `json:"document_id" db:"document_id"`
	VersionNumber int           `json:"version_number" db:"version_number"`
	StoragePath   string        `json:"storage_path" db:"storage_path"`
	SizeBytes     int64         `json:"size_bytes" db:"size_bytes"`
	MIMEType      string        `json:"mime_type" db:"mime_type"`
	UploadedBy    string        `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt    time.Time     `json:"uploaded_at" db:"uploaded_at"`
	Description   *string       `json:"description,omitempty" db:"description"`
	IsRestored    bool          `json:"is_restored" db:"is_restored"`
	RestoredFrom  *uuid.UUID    `json:"restored_from,omitempty" db:"restored_from"`
	Status        VersionStatus `json:"status" db:"status"`
	Tags          []Tag         `json:"tags,omitempty" db:"-"`
	Annotations   []Annotation  `json:"annotations,omitempty" db:"-"`
}

func (v *Version) IsCommitted() bool {
	return v.Status == VersionStatusCommitted
}

type Tag struct {
	ID        uuid.UUID `json:"id" db:"id"`
	VersionID uuid.UUID `json:"version_id" db:"version_id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Annotation - текстовая заметка пользователя к версии, только добавление
type Annotation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	VersionID uuid.UUID `json:"version_id" db:"version_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
