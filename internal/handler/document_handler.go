package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"dealdocs/internal/domain"
)

const multipartMemory = 32 << 20

type DocumentReader interface {
	ListDocuments(ctx context.Context, userID string, dealID uuid.UUID) ([]domain.Document, error)
	GetDocument(ctx context.Context, userID string, documentID uuid.UUID) (*domain.Document, error)
	ListVersions(ctx context.Context, userID string, documentID uuid.UUID) ([]domain.Version, error)
	GetVersion(ctx context.Context, userID string, versionID uuid.UUID) (*domain.Version, error)
	DownloadURL(ctx context.Context, userID string, versionID uuid.UUID) (string, error)
}

type VersionManager interface {
	CreateDocument(ctx context.Context, userID string, dealID uuid.UUID, name, category string, upload domain.DocumentUpload) (*domain.Document, error)
	AddVersion(ctx context.Context, userID string, documentID uuid.UUID, upload domain.DocumentUpload) (*domain.Version, error)
	DeleteVersion(ctx context.Context, userID string, versionID uuid.UUID) error
	DeleteDocument(ctx context.Context, userID string, documentID uuid.UUID) error
	RestoreVersion(ctx context.Context, userID string, versionID uuid.UUID) (*domain.Version, error)
}

type PermissionReader interface {
	Permissions(ctx context.Context, userID string, dealID uuid.UUID) (domain.PermissionSet, error)
}

type Previewer interface {
	Preview(ctx context.Context, v *domain.Version) ([]byte, error)
}

type DocumentHandler struct {
	documents      DocumentReader
	versions       VersionManager
	permissions    PermissionReader
	previews       Previewer
	maxUploadBytes int64
	log            *slog.Logger
}

func NewDocumentHandler(
	documents DocumentReader,
	versions VersionManager,
	permissions PermissionReader,
	previews Previewer,
	maxUploadBytes int64,
	log *slog.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		documents:      documents,
		versions:       versions,
		permissions:    permissions,
		previews:       previews,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

func (h *DocumentHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuidParam(r, "dealID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	set, err := h.permissions.Permissions(r.Context(), currentUser(r), dealID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuidParam(r, "dealID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	docs, err := h.documents.ListDocuments(r.Context(), currentUser(r), dealID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// CreateDocument принимает multipart-форму: file, name, category, description
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuidParam(r, "dealID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	upload, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	doc, err := h.versions.CreateDocument(r.Context(), currentUser(r), dealID,
		r.FormValue("name"), r.FormValue("category"), upload)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuidParam(r, "documentID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	doc, err := h.documents.GetDocument(r.Context(), currentUser(r), documentID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuidParam(r, "documentID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	if err := h.versions.DeleteDocument(r.Context(), currentUser(r), documentID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuidParam(r, "documentID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	versions, err := h.documents.ListVersions(r.Context(), currentUser(r), documentID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if versions == nil {
		versions = []domain.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *DocumentHandler) AddVersion(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuidParam(r, "documentID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	upload, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	v, err := h.versions.AddVersion(r.Context(), currentUser(r), documentID, upload)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *DocumentHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	if err := h.versions.DeleteVersion(r.Context(), currentUser(r), versionID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	v, err := h.versions.RestoreVersion(r.Context(), currentUser(r), versionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

type downloadResponse struct {
	URL string `json:"url"`
}

func (h *DocumentHandler) DownloadVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	url, err := h.documents.DownloadURL(r.Context(), currentUser(r), versionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{URL: url})
}

func (h *DocumentHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	v, err := h.documents.GetVersion(r.Context(), currentUser(r), versionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	data, err := h.previews.Preview(r.Context(), v)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	// версии неизменяемы, превью можно кешировать надолго
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *DocumentHandler) readUpload(w http.ResponseWriter, r *http.Request) (domain.DocumentUpload, error) {
	const op = "ReadUpload"

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.DocumentUpload{}, domain.Invalid(op, fmt.Sprintf("file size exceeds maximum allowed size of %d bytes", h.maxUploadBytes))
		}
		return domain.DocumentUpload{}, domain.Invalid(op, "invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.DocumentUpload{}, domain.Invalid(op, "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return domain.DocumentUpload{}, domain.Invalid(op, "failed to read file")
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	upload := domain.DocumentUpload{
		FileName: header.Filename,
		MIMEType: mimeType,
		Data:     data,
	}
	if desc := strings.TrimSpace(r.FormValue("description")); desc != "" {
		upload.Description = &desc
	}
	return upload, nil
}
