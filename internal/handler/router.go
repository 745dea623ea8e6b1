package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type Handlers struct {
	Documents *DocumentHandler
	Shares    *ShareHandler
	Tags      *TagHandler
	Analysis  *AnalysisHandler
}

// NewRouter собирает HTTP-маршруты; все под /v1, кроме /v1/public, требуют токен
func NewRouter(cfg RouterConfig, authenticate func(http.Handler) http.Handler, db Pinger, h Handlers, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/public/shares/{token}", h.Shares.ResolveShare)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Route("/deals/{dealID}", func(r chi.Router) {
				r.Get("/permissions", h.Documents.GetPermissions)
				r.Get("/documents", h.Documents.ListDocuments)
				r.Post("/documents", h.Documents.CreateDocument)
			})

			r.Route("/documents/{documentID}", func(r chi.Router) {
				r.Get("/", h.Documents.GetDocument)
				r.Delete("/", h.Documents.DeleteDocument)
				r.Get("/versions", h.Documents.ListVersions)
				r.Post("/versions", h.Documents.AddVersion)
			})

			r.Route("/versions/{versionID}", func(r chi.Router) {
				r.Delete("/", h.Documents.DeleteVersion)
				r.Post("/restore", h.Documents.RestoreVersion)
				r.Get("/download", h.Documents.DownloadVersion)
				r.Get("/preview", h.Documents.GetPreview)
				r.Post("/tags", h.Tags.AddTag)
				r.Get("/annotations", h.Tags.ListAnnotations)
				r.Post("/annotations", h.Tags.AddAnnotation)
				r.Get("/shares", h.Shares.ListShares)
				r.Post("/shares", h.Shares.CreateShare)
				r.Post("/analysis", h.Analysis.Analyze)
			})

			r.Delete("/tags/{tagID}", h.Tags.RemoveTag)
			r.Post("/shares/{shareID}/revoke", h.Shares.RevokeShare)
		})
	})

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
