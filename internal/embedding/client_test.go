package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_IsDeterministic(t *testing.T) {
	h := NewHashEmbedder(16)
	ctx := context.Background()

	a, err := h.EmbedSingle(ctx, "usb microphone")
	require.NoError(t, err)
	b, err := h.EmbedSingle(ctx, "usb microphone")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestHashEmbedder_DistinctTextsGetDistinctVectors(t *testing.T) {
	h := NewHashEmbedder(16)
	ctx := context.Background()

	a, _ := h.EmbedSingle(ctx, "usb microphone")
	b, _ := h.EmbedSingle(ctx, "guitar stand")
	assert.NotEqual(t, a, b)
}

func TestHashEmbedder_VectorsAreUnitLength(t *testing.T) {
	h := NewHashEmbedder(8)

	v, err := h.EmbedSingle(context.Background(), "some text")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{
				{Index: 1, Embedding: []float32{0, 1}},
				{Index: 0, Embedding: []float32{1, 0}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		Dimension: 2,
		Timeout:   time.Second,
	})
	require.NoError(t, err)

	got, err := client.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float32{1, 0}, got[0], "results are reordered by index")
	assert.Equal(t, []float32{0, 1}, got[1])
}

func TestClient_ConcurrentEmbedsResolveDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Index: 0, Embedding: []float32{1, 0, 0}}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:    "k",
		BaseURL:   srv.URL,
		Dimension: 384,
		Timeout:   time.Second,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.EmbedSingle(context.Background(), "a")
			assert.NoError(t, err)
			client.Dimension()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, client.Dimension(), "dimension follows what the endpoint actually returns")
}

func TestClient_Embed_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(embeddingResponse{
			Error: &embeddingError{Message: "bad input", Type: "invalid_request"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")
}

func TestClient_EmbedSingle_NoEmbeddingReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.EmbedSingle(context.Background(), "a")
	assert.Error(t, err)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://x"})
	assert.Error(t, err, "API key is required")

	_, err = NewClient(Config{APIKey: "k"})
	assert.Error(t, err, "base URL is required")
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := normalize([]float32{0, 0, 0})
	for _, x := range v {
		assert.False(t, math.IsNaN(float64(x)))
		assert.Equal(t, float32(0), x)
	}
}
