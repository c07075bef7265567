package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairshare/fairshare/internal/model"
)

const (
	groupKeyPrefix    = "group:"
	negCacheKeySuffix = ":neg"

	// DefaultGroupTTL applies when no TTL is configured. Groups are immutable
	// so the TTL only bounds memory.
	DefaultGroupTTL = time.Hour

	// NegativeCacheTTL bounds how long an unknown group ID is remembered.
	NegativeCacheTTL = 30 * time.Second
)

// GroupCache is a read-through cache of groups keyed by ID.
type GroupCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewGroupCache creates a GroupCache. A non-positive ttl uses DefaultGroupTTL.
func NewGroupCache(c *Cache, ttl time.Duration) *GroupCache {
	if ttl <= 0 {
		ttl = DefaultGroupTTL
	}
	return &GroupCache{cache: c, ttl: ttl}
}

func groupKey(id int64) string {
	return groupKeyPrefix + strconv.FormatInt(id, 10)
}

// GetGroup returns a cached group or ErrCacheMiss.
func (g *GroupCache) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	result, err := g.cache.client.HGetAll(ctx, groupKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	cached := &model.CachedGroup{
		Name:          result["name"],
		CreatorUserID: result["creator_user_id"],
		CreatedAt:     result["created_at"],
	}
	group, err := cached.ToGroup(id)
	if err != nil {
		// Unreadable entries are treated as absent and overwritten on the next fill.
		return nil, ErrCacheMiss
	}
	return group, nil
}

// SetGroup caches a group and clears any negative entry for its ID.
func (g *GroupCache) SetGroup(ctx context.Context, group *model.Group) error {
	key := groupKey(group.ID)
	cached := group.ToCachedGroup()

	pipe := g.cache.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"name":            cached.Name,
		"creator_user_id": cached.CreatorUserID,
		"created_at":      cached.CreatedAt,
	})
	pipe.Expire(ctx, key, g.ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache group: %w", err)
	}
	return nil
}

// IsNegativelyCached reports whether id was recently looked up and not found.
func (g *GroupCache) IsNegativelyCached(ctx context.Context, id int64) (bool, error) {
	err := g.cache.client.Get(ctx, groupKey(id)+negCacheKeySuffix).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return true, nil
}

// SetNegativeCache remembers that id does not exist.
func (g *GroupCache) SetNegativeCache(ctx context.Context, id int64) error {
	if err := g.cache.client.SetEx(ctx, groupKey(id)+negCacheKeySuffix, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}
