package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"dealdocs/internal/analysis"
	"dealdocs/internal/auth"
	"dealdocs/internal/config"
	"dealdocs/internal/handler"
	"dealdocs/internal/logger"
	"dealdocs/internal/preview"
	"dealdocs/internal/ratelimit"
	"dealdocs/internal/repository"
	"dealdocs/internal/service"
	"dealdocs/internal/storage"
)

// app - собранные зависимости процесса
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *sqlx.DB
	storage storage.Storage
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.New(cfg.Log)

	db, err := connectWithRetry(cfg.Database, 5, 5*time.Second, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &app{cfg: cfg, log: log, db: db, storage: store}, nil
}

func (a *app) reconciler() *service.ReconcileService {
	return service.NewReconcileService(
		repository.NewVersionRepository(a.db),
		a.storage,
		a.cfg.Reconciler.PendingTTL,
		a.cfg.Reconciler.BatchSize,
		a.log.With("component", "reconciler"),
	)
}

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.db.Close()

			if err := runMigrations(cfg.Database, a.log); err != nil {
				return err
			}
			return a.serve(ctx)
		},
	}
}

func (a *app) linkLimiter(ctx context.Context) service.LinkLimiter {
	if a.cfg.Redis.URL == "" {
		a.log.Info("redis not configured, public link rate limiting disabled")
		return nil
	}
	client, err := ratelimit.Connect(ctx, a.cfg.Redis.URL)
	if err != nil {
		// без Redis сервис продолжает работать, лимит просто не применяется
		a.log.Warn("redis unavailable, public link rate limiting disabled", "error", err)
		return nil
	}
	return ratelimit.NewRedisLimiter(client, a.cfg.Redis.PublicLinkLimit, a.cfg.Redis.PublicLinkWindow)
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	deals := repository.NewDealRepository(a.db)
	documents := repository.NewDocumentRepository(a.db)
	versions := repository.NewVersionRepository(a.db)
	tags := repository.NewTagRepository(a.db)
	links := repository.NewShareLinkRepository(a.db)

	permissions := service.NewPermissionService(deals)
	versionService := service.NewVersionService(documents, versions, a.storage, permissions,
		cfg.Server.MaxUploadBytes, a.log.With("component", "versions"))
	documentService := service.NewDocumentService(documents, versions, tags, a.storage, permissions,
		cfg.Storage.SignedURLTTL, a.log.With("component", "documents"))
	shareService := service.NewShareService(links, versions, documents, a.storage, permissions,
		a.linkLimiter(ctx), cfg.Server.PublicURL, cfg.Storage.SignedURLTTL, a.log.With("component", "shares"))
	tagService := service.NewTagService(tags, versions, documents, permissions, a.log.With("component", "tags"))
	analysisService := service.NewAnalysisService(analysis.NewClient(cfg.Analysis), versions, documents,
		a.storage, permissions, cfg.Analysis.MaxContent, a.log.With("component", "analysis"))
	previewService := preview.NewService(a.storage, a.log.With("component", "preview"))

	validator := handler.NewValidator()
	httpLog := a.log.With("component", "http")
	router := handler.NewRouter(
		handler.RouterConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
		},
		auth.NewVerifier(cfg.Auth).Middleware,
		a.db,
		handler.Handlers{
			Documents: handler.NewDocumentHandler(documentService, versionService, permissions, previewService,
				cfg.Server.MaxUploadBytes, httpLog),
			Shares:   handler.NewShareHandler(shareService, httpLog),
			Tags:     handler.NewTagHandler(tagService, validator, httpLog),
			Analysis: handler.NewAnalysisHandler(analysisService, validator, httpLog),
		},
		httpLog,
	)

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	if err := pingDB(ctx, a.db); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	// Запускаем gRPC сервер
	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.GRPCPort))
		if err != nil {
			errCh <- fmt.Errorf("failed to listen for gRPC: %w", err)
			return
		}
		a.log.Info("starting gRPC server", "port", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("failed to serve gRPC: %w", err)
		}
	}()

	// Запускаем HTTP сервер
	go func() {
		a.log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	// Чистка зависших pending-версий
	if cfg.Reconciler.Interval > 0 {
		go a.reconciler().Run(ctx, cfg.Reconciler.Interval)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	a.log.Info("shutting down servers")

	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Error("HTTP server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()

	a.log.Info("server exited properly")
	return serveErr
}
