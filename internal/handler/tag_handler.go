package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"dealdocs/internal/domain"
)

type TagManager interface {
	AddTag(ctx context.Context, userID string, versionID uuid.UUID, name, color string) (*domain.Tag, error)
	RemoveTag(ctx context.Context, userID string, tagID uuid.UUID) error
	AddAnnotation(ctx context.Context, userID string, versionID uuid.UUID, content string) (*domain.Annotation, error)
	ListAnnotations(ctx context.Context, userID string, versionID uuid.UUID) ([]domain.Annotation, error)
}

type TagHandler struct {
	tags      TagManager
	validator *Validator
	log       *slog.Logger
}

func NewTagHandler(tags TagManager, validator *Validator, log *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, validator: validator, log: log}
}

type addTagRequest struct {
	Name  string `json:"name" validate:"required,max=64"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type addAnnotationRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

func (h *TagHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	var req addTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	tag, err := h.tags.AddTag(r.Context(), currentUser(r), versionID, req.Name, req.Color)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TagHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	tagID, err := uuidParam(r, "tagID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	if err := h.tags.RemoveTag(r.Context(), currentUser(r), tagID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) AddAnnotation(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	var req addAnnotationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	a, err := h.tags.AddAnnotation(r.Context(), currentUser(r), versionID, req.Content)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *TagHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	annotations, err := h.tags.ListAnnotations(r.Context(), currentUser(r), versionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if annotations == nil {
		annotations = []domain.Annotation{}
	}
	writeJSON(w, http.StatusOK, annotations)
}
