package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"dealdocs/internal/domain"
)

const DefaultTagColor = "#808080"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// TagService управляет тегами и аннотациями версий
type TagService struct {
	tags        TagStore
	versions    VersionStore
	documents   DocumentStore
	permissions *PermissionService
	log         *slog.Logger
}

func NewTagService(tags TagStore, versions VersionStore, documents DocumentStore, permissions *PermissionService, log *slog.Logger) *TagService {
	return &TagService{
		tags:        tags,
		versions:    versions,
		documents:   documents,
		permissions: permissions,
		log:         log.With("component", "tags"),
	}
}

func (s *TagService) AddTag(ctx context.Context, userID string, versionID uuid.UUID, name, color string) (*domain.Tag, error) {
	const op = "AddTag"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid(op, "tag name is required")
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = DefaultTagColor
	}
	if !hexColor.MatchString(color) {
		return nil, domain.Invalid(op, "tag color must be a hex color like #808080")
	}

	if err := s.authorizeVersion(ctx, op, userID, versionID); err != nil {
		return nil, err
	}

	tag := &domain.Tag{
		ID:        uuid.New(),
		VersionID: versionID,
		Name:      name,
		Color:     color,
	}
	if err := s.tags.CreateTag(ctx, tag); err != nil {
		s.log.Error("failed to create tag", "version_id", versionID, "error", err)
		return nil, domain.MetadataFailure(op, err)
	}
	return tag, nil
}

func (s *TagService) RemoveTag(ctx context.Context, userID string, tagID uuid.UUID) error {
	const op = "RemoveTag"

	tag, err := s.tags.GetTag(ctx, tagID)
	if err != nil {
		return domain.MetadataFailure(op, err)
	}
	if err := s.authorizeVersion(ctx, op, userID, tag.VersionID); err != nil {
		return err
	}
	if err := s.tags.DeleteTag(ctx, tag.ID); err != nil {
		s.log.Error("failed to delete tag", "tag_id", tag.ID, "error", err)
		return domain.MetadataFailure(op, err)
	}
	return nil
}

func (s *TagService) AddAnnotation(ctx context.Context, userID string, versionID uuid.UUID, content string) (*domain.Annotation, error) {
	const op = "AddAnnotation"

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.Invalid(op, "annotation content is required")
	}
	if err := s.authorizeVersion(ctx, op, userID, versionID); err != nil {
		return nil, err
	}

	a := &domain.Annotation{
		ID:        uuid.New(),
		VersionID: versionID,
		UserID:    userID,
		Content:   content,
	}
	if err := s.tags.CreateAnnotation(ctx, a); err != nil {
		s.log.Error("failed to create annotation", "version_id", versionID, "error", err)
		return nil, domain.MetadataFailure(op, err)
	}
	return a, nil
}

func (s *TagService) ListAnnotations(ctx context.Context, userID string, versionID uuid.UUID) ([]domain.Annotation, error) {
	const op = "ListAnnotations"

	_, doc, err := loadVersion(ctx, s.versions, s.documents, op, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityView); err != nil {
		return nil, err
	}
	annotations, err := s.tags.ListAnnotations(ctx, []uuid.UUID{versionID})
	if err != nil {
		return nil, domain.MetadataFailure(op, err)
	}
	return annotations, nil
}

func (s *TagService) authorizeVersion(ctx context.Context, op, userID string, versionID uuid.UUID) error {
	_, doc, err := loadVersion(ctx, s.versions, s.documents, op, versionID)
	if err != nil {
		return err
	}
	return s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityAnnotate)
}
