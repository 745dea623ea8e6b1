package domain

import (
	"time"

	"github.com/google/uuid"
)

type ShareLinkState string

const (
	ShareLinkActive  ShareLinkState = "active"
	ShareLinkExpired ShareLinkState = "expired"
	ShareLinkRevoked ShareLinkState = "revoked"
)

type ShareLink struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	VersionID uuid.UUID  `json:"version_id" db:"version_id"`
	Token     string     `json:"token" db:"token"`
	CreatedBy string     `json:"created_by" db:"created_by"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Revoked   bool       `json:"revoked" db:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsValid: ссылка действительна, пока не отозвана и не истекла
func (l *ShareLink) IsValid(now time.Time) bool {
	if l.Revoked {
		return false
	}
	return l.ExpiresAt == nil || now.Before(*l.ExpiresAt)
}

func (l *ShareLink) State(now time.Time) ShareLinkState {
	switch {
	case l.Revoked:
		return ShareLinkRevoked
	case l.ExpiresAt != nil && !now.Before(*l.ExpiresAt):
		return ShareLinkExpired
	default:
		return ShareLinkActive
	}
}

// ShareLinkView - ссылка с вычисленной валидностью для отображения в UI
type ShareLinkView struct {
	ShareLink
	URL     string         `json:"url"`
	IsValid bool           `json:"is_valid"`
	State   ShareLinkState `json:"state"`
}
