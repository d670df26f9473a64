package router

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"rezoning/internal/api/v1/handler"
	"rezoning/internal/config"
	"rezoning/internal/middleware"
	"rezoning/internal/model"
	"rezoning/internal/queue"
	"rezoning/internal/repository"
	"rezoning/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// ErrMissingAdminSecret is returned outside development when ADMIN_JWT_SECRET is unset.
var ErrMissingAdminSecret = errors.New("ADMIN_JWT_SECRET is required outside development")

// New wires the admin API on top of store. The caller owns store.
func New(ctx context.Context, cfg *config.Config, store *repository.Store, logger zerolog.Logger) (http.Handler, error) {
	logger.Info().Str("environment", cfg.Environment).Str("db_driver", cfg.DBDriver).Msg("Router initialized")

	// 1. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 2. Initialize queues & services
	summarizeQueue, err := queue.NewFromStore[model.Project](cfg.SummarizeQueueName, store)
	if err != nil {
		return nil, err
	}
	queueSvc, err := service.NewQueueService(store, cfg.SummarizeQueueName, cfg.PubSubQueueName, cfg.WebhookQueueName)
	if err != nil {
		return nil, err
	}
	projectSvc := service.NewProjectService(summarizeQueue, store.Projects)

	var archiveSvc service.ArchiveService
	if cfg.ArchiveEnabled() {
		s3Client, err := service.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		archiveSvc = service.NewArchiveService(s3Client, cfg.S3Bucket, queueSvc)
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("Dead-letter archive enabled")
	}

	// 3. Initialize handlers
	projectHandler := handler.NewProjectHandler(projectSvc, cfg.SummarizeQueueName, validate, logger)
	queueHandler := handler.NewQueueHandler(queueSvc, archiveSvc, validate, logger)

	// 4. Initialize middleware
	authMiddleware, err := authMiddleware(cfg, logger)
	if err != nil {
		return nil, err
	}

	// 5. Create ServeMux router
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	projectHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	queueHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Redirect all other root-level requests to /v1/{path}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || strings.HasPrefix(r.URL.Path, "/v1/") {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	// 6. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), nil
}

// authMiddleware returns the bearer-token check, or a pass-through when running
// in development without a secret.
func authMiddleware(cfg *config.Config, logger zerolog.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.AdminJWTSecret != "" {
		return middleware.AuthMiddleware(cfg.AdminJWTSecret, logger), nil
	}
	if cfg.Environment != "development" {
		return nil, ErrMissingAdminSecret
	}
	logger.Warn().Msg("ADMIN_JWT_SECRET not set, admin API is unauthenticated")
	return func(next http.Handler) http.Handler { return next }, nil
}
