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

const documentColumns = `id, deal_id, name, category, latest_version_id, version_seq, created_by, created_at, updated_at`

type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	query := `
        INSERT INTO documents (id, deal_id, name, category, created_by)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING version_seq, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		doc.ID,
		doc.DealID,
		doc.Name,
		doc.Category,
		doc.CreatedBy,
	).Scan(&doc.VersionSeq, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("GetDocument", "document")
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.Document, error) {
	docs := []domain.Document{}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE deal_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &docs, query, dealID); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// ReserveVersionNumber атомарно увеличивает счетчик версий документа и возвращает новый номер.
// Номера не переиспользуются даже после удаления версий.
func (r *DocumentRepository) ReserveVersionNumber(ctx context.Context, documentID uuid.UUID) (int, error) {
	var next int
	query := `
        UPDATE documents
        SET version_seq = version_seq + 1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
        RETURNING version_seq`

	if err := r.db.QueryRowContext(ctx, query, documentID).Scan(&next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NotFound("ReserveVersionNumber", "document")
		}
		return 0, fmt.Errorf("failed to reserve version number: %w", err)
	}
	return next, nil
}

// SetLatestVersion обновляет указатель на последнюю версию; nil сбрасывает его
func (r *DocumentRepository) SetLatestVersion(ctx context.Context, documentID uuid.UUID, versionID *uuid.UUID) error {
	query := `
        UPDATE documents
        SET latest_version_id = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, versionID, documentID)
	if err != nil {
		return fmt.Errorf("failed to update latest version: %w", err)
	}
	return expectAffected(result, "SetLatestVersion", "document")
}

// Delete удаляет документ; версии, теги, заметки и ссылки удаляются каскадно
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectAffected(result, "DeleteDocument", "document")
}

func expectAffected(result sql.Result, op, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.NotFound(op, what)
	}
	return nil
}
