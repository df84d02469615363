package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/docqa/internal/api"
	"github.com/Rrens/docqa/internal/config"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/logging"
	"github.com/Rrens/docqa/internal/qaclient"
	"github.com/Rrens/docqa/internal/repository/redis"
	"github.com/Rrens/docqa/internal/security"
	"github.com/Rrens/docqa/internal/session"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("qa_base_url", cfg.QA.BaseURL).
		Msg("Starting document QA gateway")

	// Optional Redis
	var redisClient *redis.Client
	var catalogCache *redis.CatalogCache
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(context.Background(), cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		catalogCache = redis.NewCatalogCache(redisClient, cfg.Redis.CatalogTTL)
	}

	qa := qaclient.New(qaclient.Config{BaseURL: cfg.QA.BaseURL, Timeout: cfg.QA.Timeout})
	qaFor := func(user domain.User) domain.QAService {
		var svc domain.QAService = qa.WithToken(user.Token)
		if catalogCache != nil {
			svc = redis.NewCachedQAService(svc, catalogCache, user.Username)
		}
		return svc
	}
	newController := func() *session.Controller {
		return session.NewController(qa, qaFor, session.Options{
			MergeDelay:   cfg.Session.MergeDelay,
			CallTimeout:  cfg.Session.CallTimeout,
			FetchTimeout: cfg.Session.FetchTimeout,
		})
	}

	sealer, err := security.NewSealer(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token sealer")
	}
	sessions := session.NewRegistry(cfg.Session.IdleTTL)

	deps := api.Deps{
		Sessions:      sessions,
		JWTManager:    security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL),
		Sealer:        sealer,
		NewController: newController,
		Redis:         redisClient,
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sessions.Shutdown()

	log.Info().Msg("Server stopped")
}
