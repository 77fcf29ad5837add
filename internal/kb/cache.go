// Package kb provides knowledge-base helpers: a caching lookup layer for the
// client, an HTML article importer and a YAML seed loader for the
// development backend.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// Source answers knowledge-base lookups. *backend.Client satisfies it.
type Source interface {
	SearchKB(ctx context.Context, query string, limit int) ([]protocol.KBArticle, error)
	GetKBArticle(ctx context.Context, id string) (*protocol.KBArticle, error)
}

// Cache memoises Source lookups for a fixed TTL. Failed lookups are not
// cached.
type Cache struct {
	src    Source
	items  *cache.Cache
	logger *slog.Logger
}

// NewCache wraps src. A ttl of zero or less disables caching.
func NewCache(src Source, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{src: src, logger: logger}
	if ttl > 0 {
		c.items = cache.New(ttl, 2*ttl)
	}
	return c
}

// SearchKB returns up to limit articles for query, served from the cache
// when an identical search was made within the TTL.
func (c *Cache) SearchKB(ctx context.Context, query string, limit int) ([]protocol.KBArticle, error) {
	key := fmt.Sprintf("search:%d:%s", limit, strings.ToLower(strings.TrimSpace(query)))
	if c.items != nil {
		if v, ok := c.items.Get(key); ok {
			c.logger.Debug("kb cache hit", "query", query)
			return cloneArticles(v.([]protocol.KBArticle)), nil
		}
	}

	articles, err := c.src.SearchKB(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if c.items != nil {
		c.items.Set(key, cloneArticles(articles), cache.DefaultExpiration)
	}
	return articles, nil
}

// GetKBArticle returns one article by id.
func (c *Cache) GetKBArticle(ctx context.Context, id string) (*protocol.KBArticle, error) {
	key := "article:" + id
	if c.items != nil {
		if v, ok := c.items.Get(key); ok {
			a := v.(protocol.KBArticle)
			return &a, nil
		}
	}

	a, err := c.src.GetKBArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.items != nil {
		c.items.Set(key, *a, cache.DefaultExpiration)
	}
	return a, nil
}

// Flush drops every cached entry.
func (c *Cache) Flush() {
	if c.items != nil {
		c.items.Flush()
	}
}

// Len returns the number of cached entries, expired ones included until the
// janitor removes them.
func (c *Cache) Len() int {
	if c.items == nil {
		return 0
	}
	return c.items.ItemCount()
}

func cloneArticles(in []protocol.KBArticle) []protocol.KBArticle {
	out := make([]protocol.KBArticle, len(in))
	copy(out, in)
	return out
}
