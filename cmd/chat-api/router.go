// Package main provides the chat API router setup.
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cartline-ai/cartline/cmd/chat-api/handlers"
	"github.com/cartline-ai/cartline/cmd/chat-api/middleware"
	"github.com/cartline-ai/cartline/internal/catalog"
	"github.com/cartline-ai/cartline/internal/chat"
	"github.com/cartline-ai/cartline/internal/index"
	"github.com/cartline-ai/cartline/internal/observability"
	"github.com/cartline-ai/cartline/internal/retrieval"
)

// AppDeps holds the constructed components the router serves.
type AppDeps struct {
	Catalog   *catalog.Catalog
	Handle    *index.Handle
	Store     *index.Store
	Builder   *index.Builder
	Retriever *retrieval.Retriever
	RespCache *retrieval.ResponseCache
	Composer  *chat.Composer

	RequestTimeout time.Duration
	TopKDefault    int
	AllowedOrigins []string
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(middleware.CORS(origins))
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r.Use(chimiddleware.Timeout(timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"cartline"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snap := deps.Handle.Snapshot()
		if snap == nil || snap.Index.Count() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"index not loaded"}`))
			return
		}
		fmt.Fprintf(w, `{"status":"ready","indexed":%d}`, snap.Index.Count())
	})

	chatHandler := handlers.NewChatHandler(logger, deps.Composer)
	searchHandler := handlers.NewSearchHandler(logger, deps.Retriever, deps.TopKDefault)
	productHandler := handlers.NewProductHandler(logger, deps.Catalog)
	adminHandler := handlers.NewAdminHandler(logger, deps.Builder, deps.Catalog, deps.Handle, deps.Store, deps.RespCache)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler.Message)
		r.Post("/search", searchHandler.Search)
		r.Get("/products/{productId}", productHandler.Get)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/rebuild", adminHandler.Rebuild)
		})
	})

	return r
}
