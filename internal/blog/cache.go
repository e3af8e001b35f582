package blog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const postKeyPrefix = "blog:post:"

// PostCache is a Redis read-through cache for single posts. A nil PostCache
// or one without a client always calls the loader.
type PostCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
	stats  CacheRecorder
}

// CacheRecorder observes cache hits and misses.
type CacheRecorder interface {
	ObserveCacheLookup(hit bool)
}

// NewPostCache instantiates the cache helper.
func NewPostCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *PostCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostCache{client: client, ttl: ttl, logger: logger}
}

// WithRecorder attaches a hit/miss recorder.
func (c *PostCache) WithRecorder(stats CacheRecorder) *PostCache {
	if c != nil {
		c.stats = stats
	}
	return c
}

func (c *PostCache) observe(hit bool) {
	if c.stats != nil {
		c.stats.ObserveCacheLookup(hit)
	}
}

func postKey(id int64) string {
	return postKeyPrefix + strconv.FormatInt(id, 10)
}

// Fetch returns the cached post or populates the entry using loader.
// Concurrent misses for the same id share one loader call. Redis failures
// degrade to calling loader directly; loader errors are never cached.
func (c *PostCache) Fetch(ctx context.Context, id int64, loader func(context.Context) (Post, error)) (Post, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := postKey(id)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var post Post
		if err := json.Unmarshal(payload, &post); err == nil {
			c.observe(true)
			return post, nil
		}
		c.logger.Warn("discard corrupt post cache entry", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("post cache read failed", slog.String("key", key), slog.Any("error", err))
		return loader(ctx)
	}
	c.observe(false)

	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		post, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(post); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("post cache write failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		return post, nil
	})
	select {
	case <-ctx.Done():
		return Post{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Post{}, res.Err
		}
		return res.Val.(Post), nil
	}
}

// Invalidate drops the cached copy of a post.
func (c *PostCache) Invalidate(ctx context.Context, id int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, postKey(id)).Err()
}
