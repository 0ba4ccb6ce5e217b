package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cartline-ai/cartline/internal/catalog"
	"github.com/cartline-ai/cartline/internal/embedding"
	"github.com/cartline-ai/cartline/internal/observability"
)

// ProductMeta holds the display fields needed at query time without going
// back to the catalog.
type ProductMeta struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Rating float64 `json:"rating"`
}

// Snapshot is a fully built index version: the vector structure, the
// metadata side table and the catalog fingerprint they were built from.
// Snapshots are immutable once built and replaced wholesale on rebuild.
type Snapshot struct {
	Index       *MemoryIndex
	Meta        map[string]ProductMeta
	Fingerprint string
	Model       string
	BuiltAt     time.Time
}

// Builder converts a product catalog into an index snapshot.
type Builder struct {
	logger    *observability.Logger
	embedder  embedding.Embedder
	batchSize int
}

// BuildProgress is invoked after every embedded batch with the number of
// records processed so far and the total. Optional.
type BuildProgress func(done, total int)

// NewBuilder creates an index builder. Batches of batchSize records are
// embedded at a time to bound peak memory.
func NewBuilder(logger *observability.Logger, embedder embedding.Embedder, batchSize int) *Builder {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Builder{
		logger:    logger,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// Build embeds every catalog record and produces a snapshot. Records whose
// embedding fails are skipped and logged; only a fully failed batch where
// no record could be recovered aborts the build.
func (b *Builder) Build(ctx context.Context, cat *catalog.Catalog, progress BuildProgress) (*Snapshot, error) {
	products := cat.All()
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	idx := NewMemoryIndex(b.embedder.Dimension())
	meta := make(map[string]ProductMeta, len(products))
	skipped := 0

	for start := 0; start < len(products); start += b.batchSize {
		end := start + b.batchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.EmbeddingText()
		}

		vectors, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			// Batch failed wholesale: retry record by record so one bad
			// input cannot sink its neighbors.
			vectors = b.embedOneByOne(ctx, texts)
		}

		entries := make([]Entry, 0, len(batch))
		for i, p := range batch {
			if i >= len(vectors) || len(vectors[i]) == 0 {
				skipped++
				b.logger.Warn().Str("product_id", p.ID).Msg("Embedding failed, skipping record")
				continue
			}
			entries = append(entries, Entry{ProductID: p.ID, Vector: vectors[i]})
			meta[p.ID] = ProductMeta{
				ID:     p.ID,
				Title:  p.Title,
				Price:  p.Price,
				Rating: p.Rating,
			}
		}

		if err := idx.Insert(ctx, entries); err != nil {
			return nil, fmt.Errorf("insert batch %d-%d: %w", start, end, err)
		}

		if progress != nil {
			progress(end, len(products))
		}
	}

	if idx.Count() == 0 {
		return nil, fmt.Errorf("no records could be embedded")
	}

	b.logger.Info().
		Int("indexed", idx.Count()).
		Int("skipped", skipped).
		Str("model", b.embedder.Model()).
		Msg("Index build complete")

	return &Snapshot{
		Index:       idx,
		Meta:        meta,
		Fingerprint: cat.Fingerprint(),
		Model:       b.embedder.Model(),
		BuiltAt:     time.Now(),
	}, nil
}

func (b *Builder) embedOneByOne(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := b.embedder.EmbedSingle(ctx, text)
		if err != nil {
			continue
		}
		vectors[i] = v
	}
	return vectors
}
