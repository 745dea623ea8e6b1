package service

import (
	"context"
	"log/slog"
	"time"

	"dealdocs/internal/domain"
	"dealdocs/internal/storage"
)

// ReconcileService удаляет версии, застрявшие в статусе pending
type ReconcileService struct {
	versions   VersionStore
	storage    storage.Storage
	pendingTTL time.Duration
	batchSize  int
	now        func() time.Time
	log        *slog.Logger
}

func NewReconcileService(versions VersionStore, storage storage.Storage, pendingTTL time.Duration, batchSize int, log *slog.Logger) *ReconcileService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconcileService{
		versions:   versions,
		storage:    storage,
		pendingTTL: pendingTTL,
		batchSize:  batchSize,
		now:        time.Now,
		log:        log.With("component", "reconciler"),
	}
}

// ReconcilePending обрабатывает одну пачку устаревших pending-версий и возвращает число удаленных.
// Если объект удалить не удалось, строка остается до следующего прохода.
func (s *ReconcileService) ReconcilePending(ctx context.Context) (int, error) {
	before := s.now().Add(-s.pendingTTL)

	stale, err := s.versions.ListStalePending(ctx, before, s.batchSize)
	if err != nil {
		s.log.Error("failed to list stale pending versions", "error", err)
		return 0, domain.MetadataFailure("ReconcilePending", err)
	}

	removed := 0
	for _, v := range stale {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.storage.Delete(ctx, v.StoragePath); err != nil {
			s.log.Warn("failed to delete pending object", "version_id", v.ID, "path", v.StoragePath, "error", err)
			continue
		}
		if err := s.versions.DeletePending(ctx, v.ID); err != nil {
			s.log.Warn("failed to delete pending version", "version_id", v.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info("stale pending versions removed", "count", removed, "found", len(stale))
	}
	return removed, nil
}

// Run запускает периодическую очистку до отмены контекста
func (s *ReconcileService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcilePending(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("reconcile pass failed", "error", err)
			}
		}
	}
}
