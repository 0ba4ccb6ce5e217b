package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cartline-ai/cartline/internal/observability"
	"github.com/cartline-ai/cartline/internal/retrieval"
)

// SearchHandler exposes product retrieval directly, bypassing the chat
// layer.
type SearchHandler struct {
	logger    *observability.Logger
	retriever *retrieval.Retriever
	topK      int
}

// NewSearchHandler creates a search handler. topKDefault applies when the
// request omits top_k.
func NewSearchHandler(logger *observability.Logger, retriever *retrieval.Retriever, topKDefault int) *SearchHandler {
	if topKDefault <= 0 {
		topKDefault = 5
	}
	return &SearchHandler{logger: logger, retriever: retriever, topK: topKDefault}
}

// SearchRequestDTO is the search API request.
type SearchRequestDTO struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k,omitempty"`
	Filters *SearchFiltersDTO `json:"filters,omitempty"`
}

// SearchFiltersDTO holds optional result constraints.
type SearchFiltersDTO struct {
	MaxPrice  *float64 `json:"max_price,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
}

// SearchResultDTO is one ranked match.
type SearchResultDTO struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Rating    float64 `json:"rating"`
	Score     float64 `json:"score"`
}

// SearchAggregateDTO is the price summary over the result set.
type SearchAggregateDTO struct {
	Count        int      `json:"count"`
	AveragePrice *float64 `json:"average_price"`
	MinPrice     *float64 `json:"min_price"`
	MaxPrice     *float64 `json:"max_price"`
}

// SearchResponseDTO is the search API response.
type SearchResponseDTO struct {
	Results   []SearchResultDTO  `json:"results"`
	Aggregate SearchAggregateDTO `json:"aggregate"`
	Path      string             `json:"path"`
}

// Search handles POST /api/v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.TopK == 0 {
		req.TopK = h.topK
	}

	var filters *retrieval.Filters
	if req.Filters != nil {
		filters = &retrieval.Filters{
			MaxPrice:  req.Filters.MaxPrice,
			MinRating: req.Filters.MinRating,
		}
	}

	resp, err := h.retriever.Search(r.Context(), retrieval.SearchRequest{
		Query:   req.Query,
		TopK:    req.TopK,
		Filters: filters,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, "invalid query", err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("search failed")
		writeError(w, http.StatusInternalServerError, "search failed", "")
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponseDTO(resp))
}

func toSearchResponseDTO(resp *retrieval.Response) SearchResponseDTO {
	results := make([]SearchResultDTO, 0, len(resp.Results))
	for _, res := range resp.Results {
		results = append(results, SearchResultDTO{
			ProductID: res.ProductID,
			Name:      res.Title,
			Price:     res.Price,
			Rating:    res.Rating,
			Score:     res.Score,
		})
	}
	return SearchResponseDTO{
		Results: results,
		Aggregate: SearchAggregateDTO{
			Count:        resp.Aggregate.Count,
			AveragePrice: resp.Aggregate.AveragePrice,
			MinPrice:     resp.Aggregate.MinPrice,
			MaxPrice:     resp.Aggregate.MaxPrice,
		},
		Path: string(resp.Path),
	}
}
