package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weerhq/weer/internal/app/model"
)

const resolveCachePrefix = "weer:resolve:"

// ResolveCache memoizes literal-code resolutions in redis so hot redirects
// skip Postgres. Only codes stored on the link row are cached; leased spaces
// carry their own expiry and always resolve against the store. A nil cache is
// a no-op.
type ResolveCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewResolveCache returns a cache holding entries for the given TTL.
func NewResolveCache(redisClient *redis.Client, ttl time.Duration) *ResolveCache {
	return &ResolveCache{redis: redisClient, ttl: ttl}
}

type cachedLink struct {
	LinkID    int64  `json:"link_id"`
	URL       string `json:"url"`
	CodeSpace string `json:"code_space"`
}

// Get returns the cached resolution for a code, if present. The returned link
// carries only the fields the redirect path needs.
func (c *ResolveCache) Get(ctx context.Context, code string) (*model.Link, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, resolveCachePrefix+code).Bytes()
	if err != nil {
		return nil, false
	}
	var entry cachedLink
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	stored := code
	return &model.Link{
		ID:        entry.LinkID,
		URL:       entry.URL,
		Code:      &stored,
		CodeSpace: entry.CodeSpace,
	}, true
}

// Put stores a resolution. Links without a literal code are skipped.
func (c *ResolveCache) Put(ctx context.Context, link *model.Link) {
	if c == nil || c.redis == nil || link.Code == nil {
		return
	}
	data, err := json.Marshal(cachedLink{
		LinkID:    link.ID,
		URL:       link.URL,
		CodeSpace: link.CodeSpace,
	})
	if err != nil {
		return
	}
	c.redis.Set(ctx, resolveCachePrefix+*link.Code, data, c.ttl)
}

// Forget drops a code's entry. Called when a code is released or its link
// deleted, so a recycled code cannot serve its previous target.
func (c *ResolveCache) Forget(ctx context.Context, code string) {
	if c == nil || c.redis == nil {
		return
	}
	c.redis.Del(ctx, resolveCachePrefix+code)
}
