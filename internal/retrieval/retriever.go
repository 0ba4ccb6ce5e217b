package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/cartline-ai/cartline/internal/catalog"
	"github.com/cartline-ai/cartline/internal/embedding"
	"github.com/cartline-ai/cartline/internal/index"
	"github.com/cartline-ai/cartline/internal/observability"
)

// SearchRequest is a validated-on-entry search invocation.
type SearchRequest struct {
	Query   string
	TopK    int
	Filters *Filters
}

// Retriever answers product queries through the vector index, degrading to
// keyword overlap when the vector path errors, times out or comes back
// empty. The fallback only runs after an explicit failure signal, never
// speculatively alongside the vector path.
type Retriever struct {
	logger        *observability.Logger
	embedder      embedding.Embedder
	handle        *index.Handle
	catalog       *catalog.Catalog
	cache         *ResponseCache
	vectorTimeout time.Duration
	minRating     float64
	cacheResults  bool
}

// Options configures a Retriever. VectorTimeout bounds the embed-plus-index
// leg of a search; on expiry the keyword fallback takes over. MinRating, if
// positive, is the rating floor applied when a request carries none.
// CacheResults gates the response cache.
type Options struct {
	VectorTimeout time.Duration
	MinRating     float64
	CacheResults  bool
}

// NewRetriever wires a retriever over its collaborators.
func NewRetriever(
	logger *observability.Logger,
	embedder embedding.Embedder,
	handle *index.Handle,
	cat *catalog.Catalog,
	respCache *ResponseCache,
	opts Options,
) *Retriever {
	if opts.VectorTimeout <= 0 {
		opts.VectorTimeout = 5 * time.Second
	}
	return &Retriever{
		logger:        logger,
		embedder:      embedder,
		handle:        handle,
		catalog:       cat,
		cache:         respCache,
		vectorTimeout: opts.VectorTimeout,
		minRating:     opts.MinRating,
		cacheResults:  opts.CacheResults,
	}
}

// Search runs the full hybrid pipeline: validate, consult the cache, try
// the vector path, fall back to keyword overlap on failure, post-filter,
// aggregate and cache. It returns ErrInvalidQuery for malformed requests
// and otherwise always produces a response, possibly with zero results.
func (r *Retriever) Search(ctx context.Context, req SearchRequest) (*Response, error) {
	if req.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidQuery, req.TopK)
	}
	normalized := normalizeQuery(req.Query)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}

	filters := r.defaultFilters(req.Filters)

	key := r.cache.Key(normalized, req.TopK, filters)
	if r.cacheResults {
		if cached := r.cache.Get(ctx, key); cached != nil {
			r.logger.Debug().
				Str("query", normalized).
				Str("path", string(cached.Response.Path)).
				Msg("search served from cache")
			return &cached.Response, nil
		}
	}

	started := time.Now()
	results, path := r.candidates(ctx, normalized, req.TopK)
	results = applyFilters(results, filters)

	resp := Response{
		Results:   results,
		Aggregate: Aggregate(results),
		Path:      path,
	}

	if r.cacheResults {
		if err := r.cache.Set(ctx, key, resp); err != nil {
			r.logger.Warn().Err(err).Msg("failed to cache search response")
		}
	}

	r.logger.Info().
		Str("query", normalized).
		Str("path", string(path)).
		Int("results", len(results)).
		Dur("duration", time.Since(started)).
		Msg("search completed")

	return &resp, nil
}

// defaultFilters applies the configured rating floor when the request does
// not carry one. Explicit request filters always win.
func (r *Retriever) defaultFilters(f *Filters) *Filters {
	if r.minRating <= 0 || (f != nil && f.MinRating != nil) {
		return f
	}
	floor := r.minRating
	out := Filters{MinRating: &floor}
	if f != nil {
		out.MaxPrice = f.MaxPrice
	}
	return &out
}

// candidates produces the ranked candidate set and the path that served it.
func (r *Retriever) candidates(ctx context.Context, query string, topK int) ([]Result, SearchPath) {
	results, err := r.vectorSearch(ctx, query, topK)
	if err == nil && len(results) > 0 {
		return results, PathVector
	}
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("query", query).
			Msg("vector search failed, falling back to keyword overlap")
	} else {
		r.logger.Info().
			Str("query", query).
			Msg("vector search returned no matches, falling back to keyword overlap")
	}

	var fallback []Result
	for _, m := range keywordSearch(query, r.catalog, topK) {
		fallback = append(fallback, Result{
			ProductID: m.Product.ID,
			Title:     m.Product.Title,
			Price:     m.Product.Price,
			Rating:    m.Product.Rating,
			Score:     m.Score,
		})
	}
	return fallback, PathKeyword
}

func (r *Retriever) vectorSearch(ctx context.Context, query string, topK int) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.vectorTimeout)
	defer cancel()

	snap := r.handle.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("no index snapshot available")
	}

	vec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := snap.Index.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector index search: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		meta, ok := snap.Meta[m.ProductID]
		if !ok {
			continue
		}
		results = append(results, Result{
			ProductID: m.ProductID,
			Title:     meta.Title,
			Price:     meta.Price,
			Rating:    meta.Rating,
			Score:     float64(m.Score),
		})
	}
	return results, nil
}

// applyFilters drops results outside the requested constraints. Ordering
// within the surviving set is preserved.
func applyFilters(results []Result, f *Filters) []Result {
	if f == nil || (f.MaxPrice == nil && f.MinRating == nil) {
		return results
	}
	filtered := make([]Result, 0, len(results))
	for _, res := range results {
		if f.MaxPrice != nil && res.Price > *f.MaxPrice {
			continue
		}
		if f.MinRating != nil && res.Rating < *f.MinRating {
			continue
		}
		filtered = append(filtered, res)
	}
	return filtered
}
