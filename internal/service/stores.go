package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dealdocs/internal/domain"
)

// Интерфейсы хранилищ метаданных; реализуются репозиториями на sqlx

type DealStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error)
	GetParticipant(ctx context.Context, dealID uuid.UUID, userID string) (*domain.Participant, error)
}

type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.Document, error)
	ReserveVersionNumber(ctx context.Context, documentID uuid.UUID) (int, error)
	SetLatestVersion(ctx context.Context, documentID uuid.UUID, versionID *uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type VersionStore interface {
	Create(ctx context.Context, v *domain.Version) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Version, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error)
	ListAllByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error)
	LatestCommitted(ctx context.Context, documentID uuid.UUID) (*domain.Version, error)
	Commit(ctx context.Context, versionID, documentID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeletePending(ctx context.Context, id uuid.UUID) error
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Version, error)
}

type TagStore interface {
	CreateTag(ctx context.Context, tag *domain.Tag) error
	GetTag(ctx context.Context, id uuid.UUID) (*domain.Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) error
	ListTags(ctx context.Context, versionIDs []uuid.UUID) ([]domain.Tag, error)
	CreateAnnotation(ctx context.Context, a *domain.Annotation) error
	ListAnnotations(ctx context.Context, versionIDs []uuid.UUID) ([]domain.Annotation, error)
}

type ShareLinkStore interface {
	Create(ctx context.Context, link *domain.ShareLink) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ShareLink, error)
	GetByToken(ctx context.Context, token string) (*domain.ShareLink, error)
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.ShareLink, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

// loadVersion находит подтвержденную версию и ее документ.
// Незавершенные версии не видны вызывающим и считаются отсутствующими.
func loadVersion(ctx context.Context, versions VersionStore, documents DocumentStore, op string, versionID uuid.UUID) (*domain.Version, *domain.Document, error) {
	v, err := versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, nil, domain.MetadataFailure(op, err)
	}
	if !v.IsCommitted() {
		return nil, nil, domain.NotFound(op, "version")
	}
	doc, err := documents.GetByID(ctx, v.DocumentID)
	if err != nil {
		return nil, nil, domain.MetadataFailure(op, err)
	}
	return v, doc, nil
}
