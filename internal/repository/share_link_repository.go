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

const shareLinkColumns = `id, version_id, token, created_by, expires_at, revoked, revoked_at, created_at`

type ShareLinkRepository struct {
	db *sqlx.DB
}

func NewShareLinkRepository(db *sqlx.DB) *ShareLinkRepository {
	return &ShareLinkRepository{db: db}
}

func (r *ShareLinkRepository) Create(ctx context.Context, link *domain.ShareLink) error {
	query := `
        INSERT INTO share_links (id, version_id, token, created_by, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		link.ID,
		link.VersionID,
		link.Token,
		link.CreatedBy,
		link.ExpiresAt,
	).Scan(&link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create share link: %w", err)
	}
	return nil
}

func (r *ShareLinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ShareLink, error) {
	var link domain.ShareLink
	query := `SELECT ` + shareLinkColumns + ` FROM share_links WHERE id = $1`

	if err := r.db.GetContext(ctx, &link, query, id); err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("GetShareLink", "share link")
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}
	return &link, nil
}

// GetByToken возвращает ссылку независимо от срока действия; валидность проверяет сервис
func (r *ShareLinkRepository) GetByToken(ctx context.Context, token string) (*domain.ShareLink, error) {
	var link domain.ShareLink
	query := `SELECT ` + shareLinkColumns + ` FROM share_links WHERE token = $1`

	if err := r.db.GetContext(ctx, &link, query, token); err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("ResolveShareLink", "share link")
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}
	return &link, nil
}

func (r *ShareLinkRepository) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.ShareLink, error) {
	links := []domain.ShareLink{}
	query := `
        SELECT ` + shareLinkColumns + `
        FROM share_links
        WHERE version_id = $1
        ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &links, query, versionID); err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	return links, nil
}

// Revoke отзывает ссылку; повторный отзыв ничего не меняет
func (r *ShareLinkRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE share_links
        SET revoked = TRUE,
            revoked_at = COALESCE(revoked_at, CURRENT_TIMESTAMP)
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke share link: %w", err)
	}
	return expectAffected(result, "RevokeShareLink", "share link")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
