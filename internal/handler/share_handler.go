package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dealdocs/internal/domain"
)

type ShareManager interface {
	CreateShareLink(ctx context.Context, userID string, versionID uuid.UUID, expiresAt *time.Time) (*domain.ShareLinkView, error)
	ListShareLinks(ctx context.Context, userID string, versionID uuid.UUID) ([]domain.ShareLinkView, error)
	RevokeShareLink(ctx context.Context, userID string, shareID uuid.UUID) (*domain.ShareLinkView, error)
	ResolveShareLink(ctx context.Context, token string) (string, error)
}

type ShareHandler struct {
	shares ShareManager
	log    *slog.Logger
}

func NewShareHandler(shares ShareManager, log *slog.Logger) *ShareHandler {
	return &ShareHandler{shares: shares, log: log}
}

type createShareRequest struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	var req createShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	link, err := h.shares.CreateShareLink(r.Context(), currentUser(r), versionID, req.ExpiresAt)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (h *ShareHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	links, err := h.shares.ListShareLinks(r.Context(), currentUser(r), versionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if links == nil {
		links = []domain.ShareLinkView{}
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *ShareHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	shareID, err := uuidParam(r, "shareID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	link, err := h.shares.RevokeShareLink(r.Context(), currentUser(r), shareID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// ResolveShare - публичный маршрут без аутентификации; перенаправляет на подписанный URL
func (h *ShareHandler) ResolveShare(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))

	url, err := h.shares.ResolveShareLink(r.Context(), token)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, http.StatusFound)
}
