package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartline-ai/cartline/internal/cache"
	"github.com/cartline-ai/cartline/internal/catalog"
	"github.com/cartline-ai/cartline/internal/index"
	"github.com/cartline-ai/cartline/internal/observability"
)

// stubEmbedder returns canned vectors and counts invocations so cache
// behavior can be asserted.
type stubEmbedder struct {
	vectors map[string][]float32
	dim     int
	calls   int
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) Model() string  { return "stub" }
func (s *stubEmbedder) Dimension() int { return s.dim }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return catalog.New([]catalog.Product{
		{ID: "B001", Title: "USB Microphone", Price: 25, Rating: 4.5, Description: "condenser microphone for streaming"},
		{ID: "B002", Title: "Studio Microphone", Price: 45, Rating: 4.0, Description: "professional studio recording"},
		{ID: "B003", Title: "Guitar Stand", Price: 15, Rating: 3.5, Description: "folding stand for guitars"},
	})
}

func testSnapshot(t *testing.T, cat *catalog.Catalog, vectors map[string][]float32) *index.Snapshot {
	t.Helper()
	idx := index.NewMemoryIndex(3)
	var entries []index.Entry
	for id, vec := range vectors {
		entries = append(entries, index.Entry{ProductID: id, Vector: vec})
	}
	require.NoError(t, idx.Insert(context.Background(), entries))

	meta := make(map[string]index.ProductMeta)
	for _, p := range cat.All() {
		meta[p.ID] = index.ProductMeta{ID: p.ID, Title: p.Title, Price: p.Price, Rating: p.Rating}
	}
	return &index.Snapshot{
		Index:       idx,
		Meta:        meta,
		Fingerprint: cat.Fingerprint(),
		Model:       "stub",
		BuiltAt:     time.Now(),
	}
}

func newTestRetriever(t *testing.T, emb *stubEmbedder, snap *index.Snapshot, cat *catalog.Catalog, ttl time.Duration) *Retriever {
	t.Helper()
	client := cache.NewMemoryClient(100)
	t.Cleanup(func() { client.Close() })
	respCache := NewResponseCache(client, ttl)
	return NewRetriever(observability.Nop(), emb, index.NewHandle(snap), cat, respCache, Options{
		VectorTimeout: time.Second,
		CacheResults:  true,
	})
}

func TestRetriever_Search_SortsByScoreThenID(t *testing.T) {
	cat := testCatalog(t)
	// B001 and B002 share a vector so they tie; ascending ID breaks it.
	emb := &stubEmbedder{dim: 3, vectors: map[string][]float32{
		"microphone": {1, 0, 0},
	}}
	snap := testSnapshot(t, cat, map[string][]float32{
		"B001": {1, 0, 0},
		"B002": {1, 0, 0},
		"B003": {0, 1, 0},
	})
	r := newTestRetriever(t, emb, snap, cat, time.Minute)

	resp, err := r.Search(context.Background(), SearchRequest{Query: "Microphone", TopK: 3})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, PathVector, resp.Path)
	assert.Equal(t, "B001", resp.Results[0].ProductID)
	assert.Equal(t, "B002", resp.Results[1].ProductID)
	assert.Equal(t, "B003", resp.Results[2].ProductID)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
}

func TestRetriever_Search_CacheHitSkipsEmbedding(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3, vectors: map[string][]float32{
		"microphone": {1, 0, 0},
	}}
	snap := testSnapshot(t, cat, map[string][]float32{
		"B001": {1, 0, 0},
		"B002": {0.9, 0.1, 0},
	})
	r := newTestRetriever(t, emb, snap, cat, time.Minute)

	first, err := r.Search(context.Background(), SearchRequest{Query: "microphone", TopK: 2})
	require.NoError(t, err)
	second, err := r.Search(context.Background(), SearchRequest{Query: "  Microphone  ", TopK: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, emb.calls, "second search must be served from cache")
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.Aggregate, second.Aggregate)
}

func TestRetriever_Search_ExpiredEntryRecomputes(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3, vectors: map[string][]float32{
		"microphone": {1, 0, 0},
	}}
	snap := testSnapshot(t, cat, map[string][]float32{"B001": {1, 0, 0}})
	r := newTestRetriever(t, emb, snap, cat, 10*time.Millisecond)

	_, err := r.Search(context.Background(), SearchRequest{Query: "microphone", TopK: 2})
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = r.Search(context.Background(), SearchRequest{Query: "microphone", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls, "expired entry must trigger recomputation")
}

func TestRetriever_Search_VectorFailureFallsBackToKeyword(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3, err: fmt.Errorf("embedding backend down")}
	snap := testSnapshot(t, cat, map[string][]float32{"B001": {1, 0, 0}})
	r := newTestRetriever(t, emb, snap, cat, time.Minute)

	resp, err := r.Search(context.Background(), SearchRequest{Query: "usb microphone", TopK: 5})
	require.NoError(t, err, "vector failure must not surface")

	assert.Equal(t, PathKeyword, resp.Path)
	require.NotEmpty(t, resp.Results)
	for _, res := range resp.Results {
		assert.Contains(t, []string{"B001", "B002"}, res.ProductID,
			"fallback results must overlap the query tokens")
		assert.Greater(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
	}
}

func TestRetriever_Search_EmptyVectorResultFallsBackToKeyword(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3, vectors: map[string][]float32{
		"guitar stand": {0, 0, 1},
	}}
	empty := testSnapshot(t, cat, nil)
	r := newTestRetriever(t, emb, empty, cat, time.Minute)

	resp, err := r.Search(context.Background(), SearchRequest{Query: "guitar stand", TopK: 5})
	require.NoError(t, err)

	assert.Equal(t, PathKeyword, resp.Path)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "B003", resp.Results[0].ProductID)
}

func TestRetriever_Search_InvalidQuery(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3}
	snap := testSnapshot(t, cat, map[string][]float32{"B001": {1, 0, 0}})
	r := newTestRetriever(t, emb, snap, cat, time.Minute)

	_, err := r.Search(context.Background(), SearchRequest{Query: "microphone", TopK: 0})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = r.Search(context.Background(), SearchRequest{Query: "   ", TopK: 5})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	assert.Equal(t, 0, emb.calls, "invalid requests are rejected before any retrieval work")
}

func TestRetriever_Search_MaxPriceFilter(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3, vectors: map[string][]float32{
		"microphone": {1, 0, 0},
	}}
	snap := testSnapshot(t, cat, map[string][]float32{
		"B001": {1, 0, 0},
		"B002": {0.9, 0.1, 0},
	})
	r := newTestRetriever(t, emb, snap, cat, time.Minute)

	maxPrice := 30.0
	resp, err := r.Search(context.Background(), SearchRequest{
		Query:   "microphone",
		TopK:    5,
		Filters: &Filters{MaxPrice: &maxPrice},
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "B001", resp.Results[0].ProductID)
	require.NotNil(t, resp.Aggregate.AveragePrice)
	assert.Equal(t, 25.0, *resp.Aggregate.AveragePrice,
		"aggregate must be computed over the filtered set only")
}

func TestRetriever_Search_ConfiguredRatingFloor(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3, vectors: map[string][]float32{
		"microphone": {1, 0, 0},
	}}
	snap := testSnapshot(t, cat, map[string][]float32{
		"B001": {1, 0, 0},
		"B002": {0.9, 0.1, 0},
	})
	client := cache.NewMemoryClient(100)
	t.Cleanup(func() { client.Close() })
	r := NewRetriever(observability.Nop(), emb, index.NewHandle(snap), cat,
		NewResponseCache(client, time.Minute), Options{
			VectorTimeout: time.Second,
			MinRating:     4.2,
			CacheResults:  true,
		})

	// No request filter: the configured floor applies.
	resp, err := r.Search(context.Background(), SearchRequest{Query: "microphone", TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "B001", resp.Results[0].ProductID)

	// An explicit request filter overrides the configured floor.
	minRating := 3.0
	resp, err = r.Search(context.Background(), SearchRequest{
		Query:   "microphone",
		TopK:    5,
		Filters: &Filters{MinRating: &minRating},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestRetriever_Search_CachingDisabled(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3, vectors: map[string][]float32{
		"microphone": {1, 0, 0},
	}}
	snap := testSnapshot(t, cat, map[string][]float32{"B001": {1, 0, 0}})
	client := cache.NewMemoryClient(100)
	t.Cleanup(func() { client.Close() })
	r := NewRetriever(observability.Nop(), emb, index.NewHandle(snap), cat,
		NewResponseCache(client, time.Minute), Options{
			VectorTimeout: time.Second,
			CacheResults:  false,
		})

	_, err := r.Search(context.Background(), SearchRequest{Query: "microphone", TopK: 2})
	require.NoError(t, err)
	_, err = r.Search(context.Background(), SearchRequest{Query: "microphone", TopK: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, emb.calls, "disabled caching must recompute every search")
	assert.Equal(t, 0, client.Len(), "disabled caching must not write entries")
}

func TestRetriever_Search_VectorErrorIsNotSurfaced(t *testing.T) {
	cat := testCatalog(t)
	emb := &stubEmbedder{dim: 3, err: errors.New("timeout")}
	snap := testSnapshot(t, cat, map[string][]float32{"B001": {1, 0, 0}})
	r := newTestRetriever(t, emb, snap, cat, time.Minute)

	resp, err := r.Search(context.Background(), SearchRequest{Query: "zzz qqq", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, resp.Results, "no overlap means a valid empty result, not an error")
	assert.Equal(t, 0, resp.Aggregate.Count)
}
