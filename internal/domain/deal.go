package domain

import (
	"time"

	"github.com/google/uuid"
)

type DealStatus string
type ParticipantRole string

const (
	DealStatusDraft     DealStatus = "draft"
	DealStatusActive    DealStatus = "active"
	DealStatusPending   DealStatus = "pending"
	DealStatusCompleted DealStatus = "completed"
	DealStatusCancelled DealStatus = "cancelled"

	RoleAdmin  ParticipantRole = "admin"
	RoleSeller ParticipantRole = "seller"
	RoleBuyer  ParticipantRole = "buyer"
	RoleLawyer ParticipantRole = "lawyer"
)

// AcceptsUploads сообщает, можно ли загружать документы в сделку с этим статусом
func (s DealStatus) AcceptsUploads() bool {
	switch s {
	case DealStatusDraft, DealStatusActive, DealStatusPending:
		return true
	default:
		return false
	}
}

type Deal struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Title     string     `json:"title" db:"title"`
	Status    DealStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Participant - участник сделки с ролью в рамках этой сделки
type Participant struct {
	DealID   uuid.UUID       `json:"deal_id" db:"deal_id"`
	UserID   string          `json:"user_id" db:"user_id"`
	Role     ParticipantRole `json:"role" db:"role"`
	JoinedAt time.Time       `json:"joined_at" db:"joined_at"`
}
