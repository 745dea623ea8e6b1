package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"dealdocs/internal/domain"
	"dealdocs/internal/storage"
)

const shareTokenLength = 32

// LinkLimiter ограничивает частоту обращений к публичной ссылке
type LinkLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type ShareService struct {
	links        ShareLinkStore
	versions     VersionStore
	documents    DocumentStore
	storage      storage.Storage
	permissions  *PermissionService
	limiter      LinkLimiter
	publicURL    string
	signedURLTTL time.Duration
	now          func() time.Time
	log          *slog.Logger
}

func NewShareService(
	links ShareLinkStore,
	versions VersionStore,
	documents DocumentStore,
	storage storage.Storage,
	permissions *PermissionService,
	limiter LinkLimiter,
	publicURL string,
	signedURLTTL time.Duration,
	log *slog.Logger,
) *ShareService {
	return &ShareService{
		links:        links,
		versions:     versions,
		documents:    documents,
		storage:      storage,
		permissions:  permissions,
		limiter:      limiter,
		publicURL:    strings.TrimRight(publicURL, "/"),
		signedURLTTL: signedURLTTL,
		now:          time.Now,
		log:          log.With("component", "shares"),
	}
}

// CreateShareLink выпускает токен доступа к одной версии, опционально ограниченный по времени
func (s *ShareService) CreateShareLink(ctx context.Context, userID string, versionID uuid.UUID, expiresAt *time.Time) (*domain.ShareLinkView, error) {
	const op = "CreateShareLink"

	v, doc, err := loadVersion(ctx, s.versions, s.documents, op, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityShare); err != nil {
		s.log.Warn("create share link denied", "version_id", versionID, "user_id", userID, "error", err)
		return nil, err
	}

	now := s.now()
	if expiresAt != nil && !now.Before(*expiresAt) {
		return nil, domain.Invalid(op, "expiry must be in the future")
	}

	token, err := gonanoid.New(shareTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate share token: %w", err)
	}

	link := &domain.ShareLink{
		ID:        uuid.New(),
		VersionID: v.ID,
		Token:     token,
		CreatedBy: userID,
		ExpiresAt: expiresAt,
	}
	if err := s.links.Create(ctx, link); err != nil {
		s.log.Error("failed to create share link", "version_id", v.ID, "error", err)
		return nil, domain.MetadataFailure(op, err)
	}

	s.log.Info("share link created", "share_id", link.ID, "version_id", v.ID)
	view := s.view(*link, now)
	return &view, nil
}

// ListShareLinks возвращает все ссылки версии, включая истекшие и отозванные
func (s *ShareService) ListShareLinks(ctx context.Context, userID string, versionID uuid.UUID) ([]domain.ShareLinkView, error) {
	const op = "ListShareLinks"

	v, doc, err := loadVersion(ctx, s.versions, s.documents, op, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityView); err != nil {
		return nil, err
	}

	links, err := s.links.ListByVersion(ctx, v.ID)
	if err != nil {
		return nil, domain.MetadataFailure(op, err)
	}

	now := s.now()
	views := make([]domain.ShareLinkView, 0, len(links))
	for _, l := range links {
		views = append(views, s.view(l, now))
	}
	return views, nil
}

// RevokeShareLink необратимо отзывает ссылку; повторный отзыв ничего не меняет
func (s *ShareService) RevokeShareLink(ctx context.Context, userID string, shareID uuid.UUID) (*domain.ShareLinkView, error) {
	const op = "RevokeShareLink"

	link, err := s.links.GetByID(ctx, shareID)
	if err != nil {
		return nil, domain.MetadataFailure(op, err)
	}
	_, doc, err := loadVersion(ctx, s.versions, s.documents, op, link.VersionID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityShare); err != nil {
		s.log.Warn("revoke share link denied", "share_id", shareID, "user_id", userID, "error", err)
		return nil, err
	}

	if !link.Revoked {
		if err := s.links.Revoke(ctx, link.ID); err != nil {
			s.log.Error("failed to revoke share link", "share_id", link.ID, "error", err)
			return nil, domain.MetadataFailure(op, err)
		}
		revokedAt := s.now()
		link.Revoked = true
		link.RevokedAt = &revokedAt
		s.log.Info("share link revoked", "share_id", link.ID)
	}

	view := s.view(*link, s.now())
	return &view, nil
}

// ResolveShareLink проверяет публичный токен и выдает подписанную ссылку на содержимое
func (s *ShareService) ResolveShareLink(ctx context.Context, token string) (string, error) {
	const op = "ResolveShareLink"

	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.NotFound(op, "share link")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "share:"+token)
		if err != nil {
			s.log.Warn("share link rate limiter unavailable", "error", err)
		} else if !allowed {
			return "", domain.RateLimited(op)
		}
	}

	link, err := s.links.GetByToken(ctx, token)
	if err != nil {
		return "", domain.MetadataFailure(op, err)
	}

	now := s.now()
	switch link.State(now) {
	case domain.ShareLinkRevoked:
		return "", domain.PermissionDenied(op, "share link has been revoked")
	case domain.ShareLinkExpired:
		return "", domain.PermissionDenied(op, "share link has expired")
	}

	v, err := s.versions.GetByID(ctx, link.VersionID)
	if err != nil {
		return "", domain.MetadataFailure(op, err)
	}
	if !v.IsCommitted() {
		return "", domain.NotFound(op, "version")
	}

	url, err := s.storage.SignedURL(ctx, v.StoragePath, s.signedURLTTL)
	if err != nil {
		s.log.Error("failed to sign shared url", "share_id", link.ID, "error", err)
		return "", domain.StorageFailure(op, err)
	}
	return url, nil
}

func (s *ShareService) view(link domain.ShareLink, now time.Time) domain.ShareLinkView {
	return domain.ShareLinkView{
		ShareLink: link,
		URL:       s.publicURL + "/v1/public/shares/" + link.Token,
		IsValid:   link.IsValid(now),
		State:     link.State(now),
	}
}
