package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/shelflog/backend/internal/feed"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "FEED_WINDOW", "FEED_PREVIEW_CAP", "AUTH_MODE", "FRIENDS_CACHE_TTL", "FEED_TOP_COMMENT"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, AuthModeJWT, cfg.AuthMode)
	assert.Equal(t, 30*time.Second, cfg.FriendsCacheTTL)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
	assert.Equal(t, "shelflog.feed", cfg.RabbitExchange)
	assert.Equal(t, feed.DefaultConfig(), cfg.Feed)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FEED_WINDOW", "30m")
	t.Setenv("FEED_PREVIEW_CAP", "3")
	t.Setenv("FEED_MAX_PAGE_SIZE", "100")
	t.Setenv("FEED_TOP_COMMENT", "earliest")
	t.Setenv("FEED_LOCK_TIMEOUT", "500ms")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.Feed.Window)
	assert.Equal(t, 3, cfg.Feed.PreviewCap)
	assert.Equal(t, 100, cfg.Feed.MaxPageSize)
	assert.Equal(t, feed.TopCommentEarliest, cfg.Feed.TopComment)
	assert.Equal(t, 500*time.Millisecond, cfg.LockTimeout)
}

func TestLoad_UnparsableValuesFallBack(t *testing.T) {
	t.Setenv("FEED_WINDOW", "soon")
	t.Setenv("FEED_PREVIEW_CAP", "five")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.Feed.Window)
	assert.Equal(t, 5, cfg.Feed.PreviewCap)
}

func TestValidate(t *testing.T) {
	base := Config{PostgresConnStr: "postgres://x", MongoURI: "mongodb://x", AuthMode: AuthModeJWT, JWTSecret: "s"}
	require.NoError(t, base.Validate())

	noPG := base
	noPG.PostgresConnStr = ""
	assert.ErrorContains(t, noPG.Validate(), "POSTGRES_CONN_STR")

	noSecret := base
	noSecret.JWTSecret = ""
	assert.ErrorContains(t, noSecret.Validate(), "JWT_SECRET")

	fb := base
	fb.AuthMode = AuthModeFirebase
	assert.ErrorContains(t, fb.Validate(), "FIREBASE_CREDENTIALS_PATH")
	fb.FirebaseCredentialsPath = "creds.json"
	assert.NoError(t, fb.Validate())

	bad := base
	bad.AuthMode = "basic"
	assert.ErrorContains(t, bad.Validate(), "unknown AUTH_MODE")
}
