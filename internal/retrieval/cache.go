package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cartline-ai/cartline/internal/cache"
)

const cacheKeyPrefix = "search:"

// CachedResponse wraps a search response with its cache lifetime so expiry
// can be re-checked on read even when the backing store has its own TTL.
type CachedResponse struct {
	Response  Response  `json:"response"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResponseCache stores search responses in a cache backend under a key
// derived from the normalized request. Only the retriever writes to it.
type ResponseCache struct {
	client cache.Client
	ttl    time.Duration
}

// NewResponseCache creates a response cache with the given entry lifetime.
func NewResponseCache(client cache.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

// Key derives a deterministic cache key from the normalized query, the
// requested result count and the canonical filter representation. Requests
// differing in any of the three never share an entry.
func (c *ResponseCache) Key(normalizedQuery string, topK int, filters *Filters) string {
	parts := []string{
		"q=" + normalizedQuery,
		fmt.Sprintf("k=%d", topK),
		"f=" + canonicalFilters(filters),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached response for key, or nil on a miss or an expired
// entry. Backend errors are treated as misses so a degraded cache never
// fails a search.
func (c *ResponseCache) Get(ctx context.Context, key string) *CachedResponse {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		return nil
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil
	}
	if time.Now().After(cached.ExpiresAt) {
		_ = c.client.Delete(ctx, key)
		return nil
	}
	return &cached
}

// Set stores a response under key with a fresh timestamp.
func (c *ResponseCache) Set(ctx context.Context, key string, resp Response) error {
	now := time.Now()
	cached := CachedResponse{
		Response:  resp,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal cached response: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl)
}

// InvalidateAll drops every cached search response. Called after an index
// swap so stale rankings are never served against a new catalog version.
func (c *ResponseCache) InvalidateAll(ctx context.Context) error {
	return c.client.DeleteByPrefix(ctx, cacheKeyPrefix)
}

// canonicalFilters renders filters in a fixed field order so equal filters
// always produce equal keys. Unset fields render as empty.
func canonicalFilters(f *Filters) string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	if f.MaxPrice != nil {
		fmt.Fprintf(&b, "max_price=%g;", *f.MaxPrice)
	}
	if f.MinRating != nil {
		fmt.Fprintf(&b, "min_rating=%g;", *f.MinRating)
	}
	return b.String()
}
