package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 5 * time.Minute

// Cache stores serialized comment listings in redis so repeated reads of the
// same thread skip postgres. A nil *Cache is valid and behaves as a cache
// that always misses, which keeps call sites free of branching when redis
// is not configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Cache around an existing redis client. A non-positive ttl
// falls back to the default.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func commentsKey(postID string, parentID *string, limit int, cursor string) string {
	parent := "-"
	if parentID != nil {
		parent = *parentID
	}
	return fmt.Sprintf("comments:post:%s:parent:%s:limit:%d:cursor:%s", postID, parent, limit, cursor)
}

// GetComments returns the cached serialized listing for the given filters,
// reporting whether the lookup hit.
func (c *Cache) GetComments(ctx context.Context, postID string, parentID *string, limit int, cursor string) ([]byte, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	val, err := c.client.Get(ctx, commentsKey(postID, parentID, limit, cursor)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get comments: %w", err)
	}
	return val, true, nil
}

// SetComments stores the serialized listing for the given filters.
func (c *Cache) SetComments(ctx context.Context, postID string, parentID *string, limit int, cursor string, payload []byte) error {
	if c == nil || c.client == nil {
		return nil
	}
	key := commentsKey(postID, parentID, limit, cursor)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// InvalidatePost drops every cached listing for a post. Called whenever a
// comment under the post is written.
func (c *Cache) InvalidatePost(ctx context.Context, postID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	pattern := fmt.Sprintf("comments:post:%s:*", postID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Ping verifies connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
