package domain

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCategory = "general"

type Document struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	DealID          uuid.UUID  `json:"deal_id" db:"deal_id"`
	Name            string     `json:"name" db:"name"`
	Category        string     `json:"category" db:"category"`
	LatestVersionID *uuid.UUID `json:"latest_version_id,omitempty" db:"latest_version_id"`
	VersionSeq      int        `json:"-" db:"version_seq"`
	CreatedBy       string     `json:"created_by" db:"created_by"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	Versions        []Version  `json:"versions,omitempty" db:"-"`
}

// HasVersions - документ без указателя на последнюю версию считается пустым
func (d *Document) HasVersions() bool {
	return d.LatestVersionID != nil
}

// IsLatest проверяет, указывает ли документ на данную версию как на последнюю
func (d *Document) IsLatest(versionID uuid.UUID) bool {
	return d.LatestVersionID != nil && *d.LatestVersionID == versionID
}

// DocumentUpload описывает загружаемый бинарный файл
type DocumentUpload struct {
	FileName    string
	MIMEType    string
	Data        []byte
	Description *string
}
