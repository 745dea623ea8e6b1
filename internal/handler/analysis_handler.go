package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"dealdocs/internal/analysis"
	"dealdocs/internal/service"
)

type VersionAnalyzer interface {
	Analyze(ctx context.Context, userID string, versionID uuid.UUID, operation analysis.Operation, content string) (*service.AnalysisResult, error)
}

type AnalysisHandler struct {
	analyzer  VersionAnalyzer
	validator *Validator
	log       *slog.Logger
}

func NewAnalysisHandler(analyzer VersionAnalyzer, validator *Validator, log *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, validator: validator, log: log}
}

type analysisRequest struct {
	Operation string `json:"operation" validate:"required,oneof=summarize explain analyze"`
	Content   string `json:"content,omitempty"`
}

func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuidParam(r, "versionID")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	var req analysisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), currentUser(r), versionID, analysis.Operation(req.Operation), req.Content)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
