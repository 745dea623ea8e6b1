package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dealdocs/internal/domain"
)

const versionColumns = `id, document_id, version_number, storage_path, size_bytes, mime_type,
        uploaded_by, uploaded_at, description, is_restored, restored_from, status`

type VersionRepository struct {
	db *sqlx.DB
}

func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create вставляет версию в статусе pending
func (r *VersionRepository) Create(ctx context.Context, v *domain.Version) error {
	query := `
        INSERT INTO document_versions (
            id, document_id, version_number, storage_path, size_bytes, mime_type,
            uploaded_by, description, is_restored, restored_from, status
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending')
        RETURNING uploaded_at, status`

	err := r.db.QueryRowContext(ctx, query,
		v.ID,
		v.DocumentID,
		v.VersionNumber,
		v.StoragePath,
		v.SizeBytes,
		v.MIMEType,
		v.UploadedBy,
		v.Description,
		v.IsRestored,
		v.RestoredFrom,
	).Scan(&v.UploadedAt, &v.Status)
	if err != nil {
		return fmt.Errorf("failed to create version: %w", err)
	}
	return nil
}

func (r *VersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Version, error) {
	var v domain.Version
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE id = $1`

	if err := r.db.GetContext(ctx, &v, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("GetVersion", "version")
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &v, nil
}

// ListByDocument возвращает подтвержденные версии, новые первыми
func (r *VersionRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error) {
	versions := []domain.Version{}
	query := `
        SELECT ` + versionColumns + `
        FROM document_versions
        WHERE document_id = $1 AND status = 'committed'
        ORDER BY version_number DESC`

	if err := r.db.SelectContext(ctx, &versions, query, documentID); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// ListAllByDocument возвращает все версии документа, включая незавершенные
func (r *VersionRepository) ListAllByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error) {
	versions := []domain.Version{}
	query := `
        SELECT ` + versionColumns + `
        FROM document_versions
        WHERE document_id = $1
        ORDER BY version_number DESC`

	if err := r.db.SelectContext(ctx, &versions, query, documentID); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// LatestCommitted возвращает версию с максимальным номером или nil, если версий нет
func (r *VersionRepository) LatestCommitted(ctx context.Context, documentID uuid.UUID) (*domain.Version, error) {
	var v domain.Version
	query := `
        SELECT ` + versionColumns + `
        FROM document_versions
        WHERE document_id = $1 AND status = 'committed'
        ORDER BY version_number DESC
        LIMIT 1`

	err := r.db.GetContext(ctx, &v, query, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return &v, nil
}

// Commit в одной транзакции переводит версию в committed и пересчитывает указатель документа
func (r *VersionRepository) Commit(ctx context.Context, versionID, documentID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE document_versions SET status = 'committed' WHERE id = $1 AND document_id = $2`,
		versionID, documentID)
	if err != nil {
		return fmt.Errorf("failed to commit version: %w", err)
	}
	if err := expectAffected(result, "CommitVersion", "version"); err != nil {
		return err
	}

	// Указатель всегда равен версии с максимальным номером
	repoint := `
        UPDATE documents
        SET latest_version_id = (
                SELECT id FROM document_versions
                WHERE document_id = $1 AND status = 'committed'
                ORDER BY version_number DESC
                LIMIT 1
            ),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, repoint, documentID); err != nil {
		return fmt.Errorf("failed to update latest version: %w", err)
	}

	return tx.Commit()
}

func (r *VersionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM document_versions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	return expectAffected(result, "DeleteVersion", "version")
}

// DeletePending удаляет версию, только если она так и не была подтверждена
func (r *VersionRepository) DeletePending(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM document_versions WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending version: %w", err)
	}
	return expectAffected(result, "DeletePendingVersion", "pending version")
}

// ListStalePending возвращает незавершенные версии, загруженные раньше before
func (r *VersionRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Version, error) {
	versions := []domain.Version{}
	query := `
        SELECT ` + versionColumns + `
        FROM document_versions
        WHERE status = 'pending' AND uploaded_at < $1
        ORDER BY uploaded_at
        LIMIT $2`

	if err := r.db.SelectContext(ctx, &versions, query, before, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending versions: %w", err)
	}
	return versions, nil
}
