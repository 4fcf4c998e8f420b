package router

import (
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/anonto42/shelflog/backend/internal/cache"
	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/handlers"
	"github.com/anonto42/shelflog/backend/internal/metrics"
	"github.com/anonto42/shelflog/backend/internal/middleware"
	"github.com/anonto42/shelflog/backend/internal/models"
	"github.com/anonto42/shelflog/backend/internal/repositories"
	"github.com/anonto42/shelflog/backend/pkg/config"
)

// Dependencies are the process-level resources the routes are built on.
// Redis, Publisher and FirebaseAuth are optional.
type Dependencies struct {
	Config       *config.Config
	Postgres     *gorm.DB
	Catalog      *mongo.Database
	Redis        *redis.Client
	Publisher    feed.Publisher
	Registry     *prometheus.Registry
	FirebaseAuth *auth.Client
	Logger       zerolog.Logger
}

// Migrate creates or updates the PostgreSQL schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.FriendRequest{},
		&models.Shelf{},
		&models.ShelfItem{},
		&models.ManualItem{},
		&models.ActivityEvent{},
		&models.Aggregate{},
		&models.FeedLike{},
		&models.FeedComment{},
	)
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Dependencies) error {
	log := d.Logger
	cfg := d.Config

	// Health check and metrics - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Registry)))

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(d.Postgres)
	friendshipRepo := repositories.NewPostgresFriendshipRepository(d.Postgres)
	aggregateRepo := repositories.NewPostgresAggregateRepository(d.Postgres, cfg.LockTimeout)
	shelfRepo := repositories.NewPostgresShelfRepository(d.Postgres)
	socialRepo := repositories.NewPostgresSocialRepository(d.Postgres)
	catalogRepo := repositories.NewCatalogRepository(d.Catalog, d.Postgres)

	var friends feed.FriendGraph = friendshipRepo
	var invalidator handlers.FriendSetInvalidator
	if d.Redis != nil {
		friendCache := cache.NewFriendCache(d.Redis, friendshipRepo, cfg.FriendsCacheTTL, log)
		friends = friendCache
		invalidator = friendCache
		log.Info().Dur("ttl", cfg.FriendsCacheTTL).Msg("Friend set cache enabled.")
	}

	publisher := d.Publisher
	if publisher == nil {
		publisher = feed.NoopPublisher{}
	}

	service := feed.NewService(feed.Deps{
		Store:     aggregateRepo,
		Shelves:   shelfRepo,
		Friends:   friends,
		Users:     userRepo,
		Catalog:   catalogRepo,
		Social:    socialRepo,
		Publisher: publisher,
		Metrics:   metrics.NewCollector(d.Registry),
		Logger:    log,
	}, cfg.Feed)

	// --- Protected routes ---
	api := e.Group("/api/v1")
	switch cfg.AuthMode {
	case config.AuthModeFirebase:
		if d.FirebaseAuth == nil {
			return fmt.Errorf("firebase auth mode requires a firebase auth client")
		}
		api.Use(middleware.FirebaseAuthMiddleware(d.FirebaseAuth, userRepo, log))
	default:
		api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	}
	log.Info().Str("mode", cfg.AuthMode).Msg("Authentication middleware applied to /api/v1 group.")

	handlers.NewEventHandler(service, log).RegisterEventRoutes(api)
	handlers.NewFeedHandler(service, log).RegisterFeedRoutes(api)
	handlers.NewSocialHandler(service, log).RegisterSocialRoutes(api)
	handlers.NewFriendshipHandler(friendshipRepo, userRepo, invalidator, log).RegisterFriendshipRoutes(api)

	log.Info().Msg("All routes configured.")
	return nil
}
