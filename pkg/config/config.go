package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/anonto42/shelflog/backend/internal/feed"
)

const (
	AuthModeJWT      = "jwt"
	AuthModeFirebase = "firebase"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	PostgresConnStr string
	MongoURI        string
	MongoDatabase   string

	RedisURL        string
	FriendsCacheTTL time.Duration

	RabbitURL      string
	RabbitExchange string

	AuthMode                string
	JWTSecret               string
	FirebaseCredentialsPath string

	LockTimeout time.Duration
	Feed        feed.Config
}

// Load reads the environment, after merging an optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		zlog.Info().Msg("No .env file found, assuming environment variables are set.")
	}

	d := feed.DefaultConfig()
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PostgresConnStr: getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "shelflog"),

		RedisURL:        getEnv("REDIS_URL", ""),
		FriendsCacheTTL: getDuration("FRIENDS_CACHE_TTL", 30*time.Second),

		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "shelflog.feed"),

		AuthMode:                getEnv("AUTH_MODE", AuthModeJWT),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),

		LockTimeout: getDuration("FEED_LOCK_TIMEOUT", 3*time.Second),
		Feed: feed.Config{
			Window:          getDuration("FEED_WINDOW", d.Window),
			PreviewCap:      getInt("FEED_PREVIEW_CAP", d.PreviewCap),
			DefaultPageSize: getInt("FEED_DEFAULT_PAGE_SIZE", d.DefaultPageSize),
			MaxPageSize:     getInt("FEED_MAX_PAGE_SIZE", d.MaxPageSize),
			MaxOffset:       getInt("FEED_MAX_OFFSET", d.MaxOffset),
			DetailItemLimit: getInt("FEED_DETAIL_ITEM_LIMIT", d.DetailItemLimit),
			TopComment:      feed.TopCommentPolicy(getEnv("FEED_TOP_COMMENT", string(feed.TopCommentLatest))),
		},
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.PostgresConnStr == "" {
		return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI environment variable not set")
	}
	switch c.AuthMode {
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthModeFirebase:
		if c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required when AUTH_MODE=firebase")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
