package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dealdocs/internal/domain"
)

// DealRepository читает сделки и участников; записи создаются другими сервисами
type DealRepository struct {
	db *sqlx.DB
}

func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	query := `SELECT id, title, status, created_at, updated_at FROM deals WHERE id = $1`

	if err := r.db.GetContext(ctx, &deal, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("GetDeal", "deal")
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return &deal, nil
}

// GetParticipant возвращает nil, nil если пользователь не участвует в сделке
func (r *DealRepository) GetParticipant(ctx context.Context, dealID uuid.UUID, userID string) (*domain.Participant, error) {
	var participant domain.Participant
	query := `
        SELECT deal_id, user_id, role, joined_at
        FROM deal_participants
        WHERE deal_id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &participant, query, dealID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &participant, nil
}
