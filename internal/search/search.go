// Package search holds helpers shared by the web search providers.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"researcher/internal/domain"
)

// Snippets keeps non-blank, trimmed snippets in order, capped at max.
// The result is never nil.
func Snippets(raw []string, max int) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// Cached memoizes successful searches for a fixed TTL.
type Cached struct {
	next  domain.WebSearcher
	cache *cache.Cache
	log   *zap.Logger
}

var _ domain.WebSearcher = (*Cached)(nil)

// NewCached wraps next. A ttl <= 0 returns next unchanged.
func NewCached(next domain.WebSearcher, ttl time.Duration, log *zap.Logger) domain.WebSearcher {
	if ttl <= 0 {
		return next
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
		log:   log.With(zap.String("module", "search_cache")),
	}
}

func (c *Cached) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	key := fmt.Sprintf("%d|%s", maxResults, strings.ToLower(strings.TrimSpace(query)))
	if v, ok := c.cache.Get(key); ok {
		c.log.Debug("search cache hit", zap.String("query", query))
		return append([]string(nil), v.([]string)...), nil
	}
	res, err := c.next.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]string(nil), res...))
	return res, nil
}
