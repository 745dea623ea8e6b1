package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"dealdocs/internal/domain"
	"dealdocs/internal/storage"
)

// VersionService управляет жизненным циклом документов и их версий
type VersionService struct {
	documents      DocumentStore
	versions       VersionStore
	storage        storage.Storage
	permissions    *PermissionService
	maxUploadBytes int64
	log            *slog.Logger
}

func NewVersionService(
	documents DocumentStore,
	versions VersionStore,
	storage storage.Storage,
	permissions *PermissionService,
	maxUploadBytes int64,
	log *slog.Logger,
) *VersionService {
	return &VersionService{
		documents:      documents,
		versions:       versions,
		storage:        storage,
		permissions:    permissions,
		maxUploadBytes: maxUploadBytes,
		log:            log.With("component", "versions"),
	}
}

// CreateDocument создает документ и его первую версию
func (s *VersionService) CreateDocument(ctx context.Context, userID string, dealID uuid.UUID, name, category string, upload domain.DocumentUpload) (*domain.Document, error) {
	const op = "CreateDocument"

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(upload.FileName)
	}
	if name == "" {
		return nil, domain.Invalid(op, "document name is required")
	}
	if err := s.validateUpload(op, upload); err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(ctx, userID, dealID, CapabilityUpload); err != nil {
		s.log.Warn("create document denied", "deal_id", dealID, "user_id", userID, "error", err)
		return nil, err
	}

	category = strings.TrimSpace(category)
	if category == "" {
		category = domain.DefaultCategory
	}

	doc := &domain.Document{
		ID:        uuid.New(),
		DealID:    dealID,
		Name:      name,
		Category:  category,
		CreatedBy: userID,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		s.log.Error("failed to create document", "deal_id", dealID, "error", err)
		return nil, domain.MetadataFailure(op, err)
	}

	v, err := s.uploadVersion(ctx, op, doc, userID, upload)
	if err != nil {
		// Пустой документ без версий не должен оставаться в списке сделки
		if delErr := s.documents.Delete(ctx, doc.ID); delErr != nil {
			s.log.Warn("failed to remove empty document", "document_id", doc.ID, "error", delErr)
		}
		return nil, err
	}

	doc.LatestVersionID = &v.ID
	doc.Versions = []domain.Version{*v}
	s.log.Info("document created", "document_id", doc.ID, "deal_id", dealID, "version_id", v.ID)
	return doc, nil
}

// AddVersion загружает новую версию существующего документа
func (s *VersionService) AddVersion(ctx context.Context, userID string, documentID uuid.UUID, upload domain.DocumentUpload) (*domain.Version, error) {
	const op = "AddVersion"

	if err := s.validateUpload(op, upload); err != nil {
		return nil, err
	}
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, domain.MetadataFailure(op, err)
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityAddVersions); err != nil {
		s.log.Warn("add version denied", "document_id", documentID, "user_id", userID, "error", err)
		return nil, err
	}

	v, err := s.uploadVersion(ctx, op, doc, userID, upload)
	if err != nil {
		return nil, err
	}
	s.log.Info("version added", "document_id", documentID, "version_id", v.ID, "version_number", v.VersionNumber)
	return v, nil
}

// DeleteVersion удаляет версию и пересчитывает указатель на последнюю версию
func (s *VersionService) DeleteVersion(ctx context.Context, userID string, versionID uuid.UUID) error {
	const op = "DeleteVersion"

	v, doc, err := loadVersion(ctx, s.versions, s.documents, op, versionID)
	if err != nil {
		return err
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityDelete); err != nil {
		s.log.Warn("delete version denied", "version_id", versionID, "user_id", userID, "error", err)
		return err
	}

	wasLatest := doc.IsLatest(v.ID)

	if err := s.versions.Delete(ctx, v.ID); err != nil {
		s.log.Error("failed to delete version", "version_id", v.ID, "error", err)
		return domain.MetadataFailure(op, err)
	}

	if wasLatest {
		if err := s.repointLatest(ctx, doc.ID); err != nil {
			s.log.Error("failed to recompute latest version", "document_id", doc.ID, "error", err)
			return domain.MetadataFailure(op, err)
		}
	}

	s.removeObjects(ctx, *v)
	s.log.Info("version deleted", "version_id", v.ID, "document_id", doc.ID, "was_latest", wasLatest)
	return nil
}

// DeleteDocument удаляет документ со всеми версиями; объекты хранилища удаляются после
func (s *VersionService) DeleteDocument(ctx context.Context, userID string, documentID uuid.UUID) error {
	const op = "DeleteDocument"

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return domain.MetadataFailure(op, err)
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityDelete); err != nil {
		s.log.Warn("delete document denied", "document_id", documentID, "user_id", userID, "error", err)
		return err
	}

	versions, err := s.versions.ListAllByDocument(ctx, doc.ID)
	if err != nil {
		return domain.MetadataFailure(op, err)
	}

	if err := s.documents.Delete(ctx, doc.ID); err != nil {
		s.log.Error("failed to delete document", "document_id", doc.ID, "error", err)
		return domain.MetadataFailure(op, err)
	}

	for _, v := range versions {
		s.removeObjects(ctx, v)
	}
	s.log.Info("document deleted", "document_id", doc.ID, "versions", len(versions))
	return nil
}

// RestoreVersion создает новую версию с копией содержимого выбранной версии.
// История не переписывается: восстановленная версия получает следующий номер.
func (s *VersionService) RestoreVersion(ctx context.Context, userID string, versionID uuid.UUID) (*domain.Version, error) {
	const op = "RestoreVersion"

	target, doc, err := loadVersion(ctx, s.versions, s.documents, op, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityAddVersions); err != nil {
		s.log.Warn("restore version denied", "version_id", versionID, "user_id", userID, "error", err)
		return nil, err
	}

	description := fmt.Sprintf("Restored from version %d", target.VersionNumber)
	v := &domain.Version{
		ID:           uuid.New(),
		DocumentID:   doc.ID,
		SizeBytes:    target.SizeBytes,
		MIMEType:     target.MIMEType,
		UploadedBy:   userID,
		Description:  &description,
		IsRestored:   true,
		RestoredFrom: &target.ID,
	}
	fileName := fileNameOf(target.StoragePath)

	err = s.createVersion(ctx, op, doc, v, fileName, func(ctx context.Context, key string) error {
		return s.storage.Copy(ctx, target.StoragePath, key)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("version restored", "document_id", doc.ID, "restored_from", target.ID,
		"version_id", v.ID, "version_number", v.VersionNumber)
	return v, nil
}

func (s *VersionService) validateUpload(op string, upload domain.DocumentUpload) error {
	if len(upload.Data) == 0 {
		return domain.Invalid(op, "file is empty")
	}
	if s.maxUploadBytes > 0 && int64(len(upload.Data)) > s.maxUploadBytes {
		return domain.Invalid(op, fmt.Sprintf("file size exceeds maximum allowed size of %d bytes", s.maxUploadBytes))
	}
	return nil
}

func (s *VersionService) uploadVersion(ctx context.Context, op string, doc *domain.Document, userID string, upload domain.DocumentUpload) (*domain.Version, error) {
	mimeType := upload.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	v := &domain.Version{
		ID:          uuid.New(),
		DocumentID:  doc.ID,
		SizeBytes:   int64(len(upload.Data)),
		MIMEType:    mimeType,
		UploadedBy:  userID,
		Description: upload.Description,
	}

	err := s.createVersion(ctx, op, doc, v, upload.FileName, func(ctx context.Context, key string) error {
		_, err := s.storage.Upload(ctx, key, upload.Data, mimeType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// createVersion: резервирует номер, пишет строку pending, записывает бинарник
// и в одной транзакции подтверждает версию вместе с указателем на последнюю.
func (s *VersionService) createVersion(
	ctx context.Context,
	op string,
	doc *domain.Document,
	v *domain.Version,
	fileName string,
	write func(ctx context.Context, key string) error,
) error {
	number, err := s.documents.ReserveVersionNumber(ctx, doc.ID)
	if err != nil {
		s.log.Error("failed to reserve version number", "document_id", doc.ID, "error", err)
		return domain.MetadataFailure(op, err)
	}
	v.VersionNumber = number
	v.StoragePath = storage.VersionPath(doc.DealID, doc.ID, v.ID, fileName)

	if err := s.versions.Create(ctx, v); err != nil {
		s.log.Error("failed to create pending version", "document_id", doc.ID, "error", err)
		return domain.MetadataFailure(op, err)
	}

	if err := write(ctx, v.StoragePath); err != nil {
		s.log.Error("failed to write version content", "version_id", v.ID, "path", v.StoragePath, "error", err)
		s.discardPending(ctx, v, false)
		return domain.StorageFailure(op, err)
	}

	if err := s.versions.Commit(ctx, v.ID, doc.ID); err != nil {
		s.log.Error("failed to commit version", "version_id", v.ID, "error", err)
		s.discardPending(ctx, v, true)
		return domain.MetadataFailure(op, err)
	}

	v.Status = domain.VersionStatusCommitted
	doc.LatestVersionID = &v.ID
	return nil
}

// discardPending убирает незавершенную версию; оставшееся подберет реконсилер
func (s *VersionService) discardPending(ctx context.Context, v *domain.Version, written bool) {
	if written {
		if err := s.storage.Delete(ctx, v.StoragePath); err != nil {
			s.log.Warn("failed to delete orphaned object", "path", v.StoragePath, "error", err)
		}
	}
	if err := s.versions.DeletePending(ctx, v.ID); err != nil {
		s.log.Warn("failed to discard pending version", "version_id", v.ID, "error", err)
	}
}

func (s *VersionService) repointLatest(ctx context.Context, documentID uuid.UUID) error {
	latest, err := s.versions.LatestCommitted(ctx, documentID)
	if err != nil {
		return err
	}
	var latestID *uuid.UUID
	if latest != nil {
		latestID = &latest.ID
	}
	return s.documents.SetLatestVersion(ctx, documentID, latestID)
}

func (s *VersionService) removeObjects(ctx context.Context, v domain.Version) {
	if err := s.storage.Delete(ctx, v.StoragePath); err != nil {
		s.log.Warn("failed to delete version object", "version_id", v.ID, "path", v.StoragePath, "error", err)
	}
	if err := s.storage.Delete(ctx, storage.PreviewPath(v.ID)); err != nil {
		s.log.Warn("failed to delete preview", "version_id", v.ID, "error", err)
	}
}

func fileNameOf(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
