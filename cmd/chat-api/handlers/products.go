package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cartline-ai/cartline/internal/catalog"
	"github.com/cartline-ai/cartline/internal/observability"
)

// ProductHandler serves catalog lookups.
type ProductHandler struct {
	logger  *observability.Logger
	catalog *catalog.Catalog
}

// NewProductHandler creates a product handler.
func NewProductHandler(logger *observability.Logger, cat *catalog.Catalog) *ProductHandler {
	return &ProductHandler{logger: logger, catalog: cat}
}

// ProductDTO is a full catalog record.
type ProductDTO struct {
	ProductID   string   `json:"product_id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Rating      float64  `json:"rating"`
	Categories  []string `json:"categories,omitempty"`
	Features    []string `json:"features,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Get handles GET /api/v1/products/{productId}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	p, ok := h.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "product not found", id)
		return
	}

	writeJSON(w, http.StatusOK, ProductDTO{
		ProductID:   p.ID,
		Name:        p.Title,
		Price:       p.Price,
		Rating:      p.Rating,
		Categories:  p.Categories,
		Features:    p.Features,
		Description: p.Description,
	})
}
