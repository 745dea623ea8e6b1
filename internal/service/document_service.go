package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dealdocs/internal/domain"
	"dealdocs/internal/storage"
)

// DocumentService отвечает за чтение документов и версий
type DocumentService struct {
	documents    DocumentStore
	versions     VersionStore
	tags         TagStore
	storage      storage.Storage
	permissions  *PermissionService
	signedURLTTL time.Duration
	log          *slog.Logger
}

func NewDocumentService(
	documents DocumentStore,
	versions VersionStore,
	tags TagStore,
	storage storage.Storage,
	permissions *PermissionService,
	signedURLTTL time.Duration,
	log *slog.Logger,
) *DocumentService {
	return &DocumentService{
		documents:    documents,
		versions:     versions,
		tags:         tags,
		storage:      storage,
		permissions:  permissions,
		signedURLTTL: signedURLTTL,
		log:          log.With("component", "documents"),
	}
}

func (s *DocumentService) ListDocuments(ctx context.Context, userID string, dealID uuid.UUID) ([]domain.Document, error) {
	const op = "ListDocuments"

	if err := s.permissions.Authorize(ctx, userID, dealID, CapabilityView); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByDeal(ctx, dealID)
	if err != nil {
		s.log.Error("failed to list documents", "deal_id", dealID, "error", err)
		return nil, domain.MetadataFailure(op, err)
	}
	return docs, nil
}

// GetDocument возвращает документ с подтвержденными версиями, тегами и аннотациями
func (s *DocumentService) GetDocument(ctx context.Context, userID string, documentID uuid.UUID) (*domain.Document, error) {
	const op = "GetDocument"

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, domain.MetadataFailure(op, err)
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityView); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListByDocument(ctx, doc.ID)
	if err != nil {
		s.log.Error("failed to list versions", "document_id", doc.ID, "error", err)
		return nil, domain.MetadataFailure(op, err)
	}
	if err := s.attachTagsAndAnnotations(ctx, versions); err != nil {
		s.log.Error("failed to load tags", "document_id", doc.ID, "error", err)
		return nil, domain.MetadataFailure(op, err)
	}

	doc.Versions = versions
	return doc, nil
}

func (s *DocumentService) ListVersions(ctx context.Context, userID string, documentID uuid.UUID) ([]domain.Version, error) {
	const op = "ListVersions"

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, domain.MetadataFailure(op, err)
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityView); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, domain.MetadataFailure(op, err)
	}
	if err := s.attachTagsAndAnnotations(ctx, versions); err != nil {
		return nil, domain.MetadataFailure(op, err)
	}
	return versions, nil
}

func (s *DocumentService) GetVersion(ctx context.Context, userID string, versionID uuid.UUID) (*domain.Version, error) {
	v, doc, err := loadVersion(ctx, s.versions, s.documents, "GetVersion", versionID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityView); err != nil {
		return nil, err
	}
	return v, nil
}

// DownloadURL выдает временную подписанную ссылку на содержимое версии
func (s *DocumentService) DownloadURL(ctx context.Context, userID string, versionID uuid.UUID) (string, error) {
	const op = "DownloadURL"

	v, err := s.GetVersion(ctx, userID, versionID)
	if err != nil {
		return "", err
	}
	url, err := s.storage.SignedURL(ctx, v.StoragePath, s.signedURLTTL)
	if err != nil {
		s.log.Error("failed to sign download url", "version_id", v.ID, "error", err)
		return "", domain.StorageFailure(op, err)
	}
	return url, nil
}

func (s *DocumentService) attachTagsAndAnnotations(ctx context.Context, versions []domain.Version) error {
	if len(versions) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(versions))
	index := make(map[uuid.UUID]int, len(versions))
	for i, v := range versions {
		ids[i] = v.ID
		index[v.ID] = i
	}

	tags, err := s.tags.ListTags(ctx, ids)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if i, ok := index[t.VersionID]; ok {
			versions[i].Tags = append(versions[i].Tags, t)
		}
	}

	annotations, err := s.tags.ListAnnotations(ctx, ids)
	if err != nil {
		return err
	}
	for _, a := range annotations {
		if i, ok := index[a.VersionID]; ok {
			versions[i].Annotations = append(versions[i].Annotations, a)
		}
	}
	return nil
}
