package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"dealdocs/internal/analysis"
	"dealdocs/internal/domain"
	"dealdocs/internal/storage"
)

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (string, error)
}

type AnalysisResult struct {
	Operation analysis.Operation `json:"operation"`
	VersionID uuid.UUID          `json:"version_id"`
	Result    string             `json:"result"`
}

// AnalysisService проксирует запросы анализа версии во внешнюю функцию
type AnalysisService struct {
	analyzer    Analyzer
	versions    VersionStore
	documents   DocumentStore
	storage     storage.Storage
	permissions *PermissionService
	maxContent  int
	log         *slog.Logger
}

func NewAnalysisService(
	analyzer Analyzer,
	versions VersionStore,
	documents DocumentStore,
	storage storage.Storage,
	permissions *PermissionService,
	maxContent int,
	log *slog.Logger,
) *AnalysisService {
	return &AnalysisService{
		analyzer:    analyzer,
		versions:    versions,
		documents:   documents,
		storage:     storage,
		permissions: permissions,
		maxContent:  maxContent,
		log:         log.With("component", "analysis"),
	}
}

// Analyze выполняет операцию над переданным текстом или над содержимым текстовой версии
func (s *AnalysisService) Analyze(ctx context.Context, userID string, versionID uuid.UUID, operation analysis.Operation, content string) (*AnalysisResult, error) {
	const op = "Analyze"

	if !operation.Valid() {
		return nil, domain.Invalid(op, "operation must be one of summarize, explain, analyze")
	}

	v, doc, err := loadVersion(ctx, s.versions, s.documents, op, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityAnalyze); err != nil {
		return nil, err
	}

	if strings.TrimSpace(content) == "" {
		content, err = s.loadContent(ctx, op, userID, doc, v)
		if err != nil {
			return nil, err
		}
	}
	if s.maxContent > 0 && len(content) > s.maxContent {
		content = content[:s.maxContent]
	}

	result, err := s.analyzer.Analyze(ctx, analysis.Request{
		Operation:  operation,
		Content:    content,
		DocumentID: doc.ID.String(),
		VersionID:  v.ID.String(),
	})
	if err != nil {
		s.log.Error("analysis call failed", "version_id", v.ID, "operation", operation, "error", err)
		if errors.Is(err, analysis.ErrRateLimited) {
			return nil, domain.RateLimited(op)
		}
		return nil, domain.UpstreamFailure(op, err)
	}

	return &AnalysisResult{Operation: operation, VersionID: v.ID, Result: result}, nil
}

func (s *AnalysisService) loadContent(ctx context.Context, op, userID string, doc *domain.Document, v *domain.Version) (string, error) {
	if !strings.HasPrefix(v.MIMEType, "text/") {
		return "", domain.Invalid(op, "content is required for non-text documents")
	}
	// Чтение содержимого требует доступа к сделке
	if err := s.permissions.Authorize(ctx, userID, doc.DealID, CapabilityView); err != nil {
		return "", err
	}

	obj, err := s.storage.Get(ctx, v.StoragePath)
	if err != nil {
		return "", domain.StorageFailure(op, err)
	}
	defer obj.Close()

	var r io.Reader = obj
	if s.maxContent > 0 {
		r = io.LimitReader(obj, int64(s.maxContent))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", domain.StorageFailure(op, err)
	}
	return string(data), nil
}
