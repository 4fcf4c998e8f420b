package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/feed"
)

// FriendCache caches accepted-friend sets in redis in front of the
// friendship store. Redis failures fall through to the store.
type FriendCache struct {
	client *redis.Client
	next   feed.FriendGraph
	ttl    time.Duration
	log    zerolog.Logger
}

func NewFriendCache(client *redis.Client, next feed.FriendGraph, ttl time.Duration, log zerolog.Logger) *FriendCache {
	return &FriendCache{
		client: client,
		next:   next,
		ttl:    ttl,
		log:    log.With().Str("component", "friend_cache").Logger(),
	}
}

// NewClient connects to REDIS_URL and pings it.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func friendsKey(userID uint) string {
	return fmt.Sprintf("feed:friends:%d", userID)
}

func (c *FriendCache) AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	key := friendsKey(userID)
	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ids []uint
		if err := json.Unmarshal(val, &ids); err == nil {
			return ids, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding unreadable cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("friend cache read failed")
	}

	ids, err := c.next.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	if b, err := json.Marshal(ids); err == nil {
		if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("friend cache write failed")
		}
	}
	return ids, nil
}

func (c *FriendCache) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	if a == b {
		return false, nil
	}
	ids, err := c.AcceptedFriendIDs(ctx, a)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == b {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached sets of every user whose edges changed.
func (c *FriendCache) Invalidate(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, friendsKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
