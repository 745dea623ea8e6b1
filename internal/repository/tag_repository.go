package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"dealdocs/internal/domain"
)

// TagRepository хранит теги и заметки к версиям
type TagRepository struct {
	db *sqlx.DB
}

func NewTagRepository(db *sqlx.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) CreateTag(ctx context.Context, tag *domain.Tag) error {
	query := `
        INSERT INTO version_tags (id, version_id, name, color)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`

	if err := r.db.QueryRowContext(ctx, query, tag.ID, tag.VersionID, tag.Name, tag.Color).Scan(&tag.CreatedAt); err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

func (r *TagRepository) GetTag(ctx context.Context, id uuid.UUID) (*domain.Tag, error) {
	var tag domain.Tag
	query := `SELECT id, version_id, name, color, created_at FROM version_tags WHERE id = $1`

	if err := r.db.GetContext(ctx, &tag, query, id); err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("GetTag", "tag")
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &tag, nil
}

func (r *TagRepository) DeleteTag(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM version_tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return expectAffected(result, "RemoveTag", "tag")
}

// ListTags возвращает теги сразу для нескольких версий
func (r *TagRepository) ListTags(ctx context.Context, versionIDs []uuid.UUID) ([]domain.Tag, error) {
	tags := []domain.Tag{}
	if len(versionIDs) == 0 {
		return tags, nil
	}
	query := `
        SELECT id, version_id, name, color, created_at
        FROM version_tags
        WHERE version_id = ANY($1::uuid[])
        ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &tags, query, pq.Array(uuidStrings(versionIDs))); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (r *TagRepository) CreateAnnotation(ctx context.Context, a *domain.Annotation) error {
	query := `
        INSERT INTO version_annotations (id, version_id, user_id, content)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`

	if err := r.db.QueryRowContext(ctx, query, a.ID, a.VersionID, a.UserID, a.Content).Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("failed to create annotation: %w", err)
	}
	return nil
}

func (r *TagRepository) ListAnnotations(ctx context.Context, versionIDs []uuid.UUID) ([]domain.Annotation, error) {
	annotations := []domain.Annotation{}
	if len(versionIDs) == 0 {
		return annotations, nil
	}
	query := `
        SELECT id, version_id, user_id, content, created_at
        FROM version_annotations
        WHERE version_id = ANY($1::uuid[])
        ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &annotations, query, pq.Array(uuidStrings(versionIDs))); err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	return annotations, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
