// Package index provides the embedding index: an in-memory approximate
// nearest-neighbor structure over the product catalog, its persisted
// artifacts, and the atomically swappable serving handle.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ErrDimensionMismatch indicates a vector dimension mismatch.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorIndex defines the interface for vector similarity search.
type VectorIndex interface {
	// Search finds the k nearest product identifiers to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]Match, error)

	// Insert adds vectors to the index.
	Insert(ctx context.Context, entries []Entry) error

	// Count returns the number of vectors in the index.
	Count() int

	// Close releases resources.
	Close() error
}

// Entry is a vector to be indexed, keyed by product identifier.
type Entry struct {
	ProductID string
	Vector    []float32
}

// Match is a vector search result. Score is cosine similarity in [-1, 1];
// opposite-direction vectors score negative. It is not comparable with
// keyword-overlap scores.
type Match struct {
	ProductID string
	Score     float32
	Distance  float32
}

// MemoryIndex is a flat in-memory cosine-similarity index. Reads are safe
// for unsynchronized concurrency once the index is built; inserts take the
// write lock.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string][]float32
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
// A non-positive dimension is resolved from the first inserted vector.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		entries:   make(map[string][]float32),
	}
}

// Insert adds normalized vectors to the index.
func (m *MemoryIndex) Insert(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		if m.dimension <= 0 {
			m.dimension = len(e.Vector)
		}
		if len(e.Vector) != m.dimension {
			return fmt.Errorf("%w: expected %d, got %d for %s",
				ErrDimensionMismatch, m.dimension, len(e.Vector), e.ProductID)
		}
		m.entries[e.ProductID] = normalizeVector(e.Vector)
	}

	return nil
}

// Search finds the k most similar entries to query by cosine similarity.
// Results are ordered by descending score, ties broken by ascending
// product identifier.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, nil
	}
	if len(query) != m.dimension {
		return nil, fmt.Errorf("%w: index dimension %d, query dimension %d",
			ErrDimensionMismatch, m.dimension, len(query))
	}

	q := normalizeVector(query)

	matches := make([]Match, 0, len(m.entries))
	for id, vec := range m.entries {
		dist := cosineDistance(q, vec)
		matches = append(matches, Match{
			ProductID: id,
			Score:     1 - dist,
			Distance:  dist,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ProductID < matches[j].ProductID
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of vectors in the index.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Dimension returns the vector dimension the index holds.
func (m *MemoryIndex) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

// Close releases resources.
func (m *MemoryIndex) Close() error {
	return nil
}

// vectors returns a copy of the stored vectors. Used when persisting.
func (m *MemoryIndex) vectors() map[string][]float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]float32, len(m.entries))
	for id, vec := range m.entries {
		out[id] = vec
	}
	return out
}

// cosineDistance computes cosine distance between two normalized vectors.
// For normalized vectors: distance = 1 - dot(a, b).
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 1.0
	}

	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}

	// Clamp against floating point drift.
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}

	return 1 - dot
}

// normalizeVector returns a unit vector.
func normalizeVector(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	if norm == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}

	return normalized
}

var _ VectorIndex = (*MemoryIndex)(nil)
