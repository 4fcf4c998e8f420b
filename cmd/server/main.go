package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/anonto42/shelflog/backend/internal/cache"
	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/messaging"
	"github.com/anonto42/shelflog/backend/internal/router"
	"github.com/anonto42/shelflog/backend/internal/validators"
	"github.com/anonto42/shelflog/backend/pkg/config"
	"github.com/anonto42/shelflog/backend/pkg/firebase"
	"github.com/anonto42/shelflog/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Env)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize databases")
	}
	defer db.CloseDB()

	if err := router.Migrate(db.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to auto migrate models")
	}
	log.Info().Msg("PostgreSQL auto-migrations completed.")

	deps := router.Dependencies{
		Config:   cfg,
		Postgres: db.Postgres,
		Catalog:  db.Catalog,
		Registry: prometheus.NewRegistry(),
		Logger:   log,
	}
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.RedisURL != "" {
		var client *redis.Client
		if client, err = cache.NewClient(ctx, cfg.RedisURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer client.Close()
		deps.Redis = client
	}

	deps.Publisher = feed.NoopPublisher{}
	if cfg.RabbitURL != "" {
		conn, ch, err := messaging.Connect(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer conn.Close()
		defer ch.Close()
		deps.Publisher = messaging.NewRabbitMQPublisher(ch, cfg.RabbitExchange)
	}

	if cfg.AuthMode == config.AuthModeFirebase {
		firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Firebase")
		}
		deps.FirebaseAuth = firebaseApp.AuthClient
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, log)

	// Setup routes and dependencies
	if err := router.SetupRoutes(e, deps); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure routes")
	}

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
