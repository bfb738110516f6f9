package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"onboarding/internal/domain/auth"
	"onboarding/internal/domain/documents"
	"onboarding/internal/domain/users"
	"onboarding/internal/platform/config"
	"onboarding/internal/platform/metrics"
	"onboarding/internal/platform/storage"
	"onboarding/internal/transport/http/api"
	authhandler "onboarding/internal/transport/http/handlers/auth"
	documentshandler "onboarding/internal/transport/http/handlers/documents"
	usershandler "onboarding/internal/transport/http/handlers/users"
	"onboarding/internal/transport/http/middleware"
)

const readyTimeout = 2 * time.Second

// Deps are the connected backends a router is built on. Redis is optional.
type Deps struct {
	Config    config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	Users     users.StoreAPI
	Documents documents.StoreAPI
	Files     storage.Storage
	Redis     redis.Cmdable
	Now       func() time.Time
}

// NewRouter builds every service from deps and mounts them under /api.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.New()
	}

	tokenOpts := []auth.TokenOption{auth.WithIssuer(cfg.JWTIssuer)}
	directory := users.NewService(deps.Users, logger)
	organizer := documents.NewService(deps.Documents, directory, deps.Files, logger)
	if deps.Now != nil {
		tokenOpts = append(tokenOpts, auth.WithClock(deps.Now))
		directory.WithClock(deps.Now)
		organizer.WithClock(deps.Now)
	}
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL, tokenOpts...)
	principals := users.NewPrincipals(deps.Users)
	guard := auth.NewGuard(principals)
	authService := auth.NewService(principals, tokens, logger)

	var (
		limiter middleware.Limiter
		replay  middleware.IdempotencyStore
	)
	if deps.Redis != nil {
		limiter = middleware.NewRedisLimiter(deps.Redis)
		replay = middleware.NewRedisIdempotencyStore(deps.Redis)
	} else {
		limiter = middleware.NewMemoryLimiter()
		replay = middleware.NewMemoryIdempotencyStore()
	}
	idempotency := middleware.Idempotency(replay, cfg.IdempotencyTTL)

	authHandler := authhandler.NewHandler(authService, directory, guard, collector)
	usersHandler := usershandler.NewHandler(directory, guard, idempotency)
	documentsHandler := documentshandler.NewHandler(organizer, guard, idempotency, collector, cfg.MaxUploadBytes)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger, collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "not_found", "route not found", middleware.GetRequestID(r.Context()))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.GetRequestID(r.Context()))
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, map[string]string{"status": "ok"}, middleware.GetRequestID(r.Context()))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := directory.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			api.Fail(w, http.StatusServiceUnavailable, "not_ready", "metadata store not ready", middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, map[string]string{"status": "ready"}, middleware.GetRequestID(r.Context()))
	})
	if cfg.MetricsEnabled {
		router.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute,
			middleware.WithLimiter(limiter), middleware.WithScope("api")))

		r.With(
			middleware.BodyLimit(cfg.MaxBodyBytes),
			middleware.LoginRateLimit(cfg.LoginRateLimitPerMinute, time.Minute, limiter),
		).Post("/auth/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(tokens))
			r.Use(middleware.MutationRateLimit(max(cfg.RateLimitPerMinute/2, 1), time.Minute,
				middleware.WithLimiter(limiter)))

			// Uploads carry their own, larger limit.
			documentsHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
				authHandler.RegisterRoutes(r)
				usersHandler.RegisterRoutes(r)
			})
		})
	})

	return router
}
