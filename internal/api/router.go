package api

import (
	"net/http"

	"github.com/Rrens/docqa/internal/api/handler"
	customMiddleware "github.com/Rrens/docqa/internal/api/middleware"
	"github.com/Rrens/docqa/internal/config"
	"github.com/Rrens/docqa/internal/metrics"
	"github.com/Rrens/docqa/internal/repository/redis"
	"github.com/Rrens/docqa/internal/security"
	"github.com/Rrens/docqa/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps are the long-lived collaborators the router wires into handlers
type Deps struct {
	Sessions      *session.Registry
	JWTManager    *security.JWTManager
	Sealer        *security.Sealer
	NewController customMiddleware.ControllerFactory
	// Redis is optional; without it requests are not rate limited
	Redis *redis.Client
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var ready handler.Pinger
	var rateLimiter customMiddleware.Limiter
	if deps.Redis != nil {
		ready = deps.Redis
		if cfg.Security.RateLimit.RequestsPerMinute > 0 {
			rateLimiter = redis.NewRateLimiter(deps.Redis, cfg.Security.RateLimit.RequestsPerMinute)
		}
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(deps.Sessions, deps.JWTManager, deps.Sealer, deps.NewController)
	chatHandler := handler.NewChatHandler()
	documentHandler := handler.NewDocumentHandler(cfg.Server.MaxUploadBytes)

	authMiddleware := customMiddleware.NewAuthMiddleware(deps.JWTManager, deps.Sealer, deps.Sessions, deps.NewController)

	if cfg.Metrics.Enabled && cfg.Metrics.Path != "" {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(ready))

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if rateLimiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(rateLimiter).Limit)
			}

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Get("/transcript", chatHandler.Transcript)
			r.Post("/questions", chatHandler.Ask)
			r.Post("/reconcile", chatHandler.Reconcile)
			r.Post("/uploads", documentHandler.Upload)

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", documentHandler.List)
				r.Post("/refresh", documentHandler.Refresh)
				r.Put("/current", documentHandler.Select)
				r.Delete("/{documentID}", documentHandler.Delete)
			})
		})
	})

	return r
}
