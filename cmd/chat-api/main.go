// Package main provides the chat API server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cartline-ai/cartline/internal/cache"
	"github.com/cartline-ai/cartline/internal/catalog"
	"github.com/cartline-ai/cartline/internal/chat"
	"github.com/cartline-ai/cartline/internal/config"
	"github.com/cartline-ai/cartline/internal/embedding"
	"github.com/cartline-ai/cartline/internal/index"
	"github.com/cartline-ai/cartline/internal/observability"
	"github.com/cartline-ai/cartline/internal/orders"
	"github.com/cartline-ai/cartline/internal/retrieval"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Driver).
		Str("catalog", cfg.Catalog.Path).
		Msg("Starting chat API")

	cat, err := catalog.LoadCSV(cfg.Catalog.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load product catalog")
	}
	logger.Info().Int("products", cat.Len()).Str("fingerprint", cat.Fingerprint()).Msg("Catalog loaded")

	embedder := newEmbedder(cfg, logger)

	store, err := index.OpenStore(cfg.Index.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open index store")
	}
	defer store.Close()

	builder := index.NewBuilder(logger, embedder, cfg.Index.BatchSize)

	ctx := context.Background()
	snap, err := loadOrBuildIndex(ctx, logger, store, builder, cat)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare index")
	}
	handle := index.NewHandle(snap)

	cacheClient := newCacheClient(cfg, logger)
	defer cacheClient.Close()

	respCache := retrieval.NewResponseCache(cacheClient, cfg.Cache.TTL)
	retriever := retrieval.NewRetriever(logger, embedder, handle, cat, respCache, retrieval.Options{
		VectorTimeout: cfg.Retrieval.VectorTimeout,
		MinRating:     cfg.Retrieval.MinRating,
		CacheResults:  cfg.Retrieval.CacheResults,
	})

	orderClient, err := orders.NewClient(orders.Config{
		BaseURL: cfg.Orders.BaseURL,
		Timeout: cfg.Orders.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create order service client")
	}

	sessions := chat.NewSessionManager(cfg.Chat.SessionExpiry)
	composer := chat.NewComposer(logger, retriever, orderClient, sessions, chat.ComposerOptions{
		TopK:       cfg.Retrieval.TopKDefault,
		MaxHistory: cfg.Chat.MaxHistory,
	})

	router := NewRouter(logger, AppDeps{
		Catalog:        cat,
		Handle:         handle,
		Store:          store,
		Builder:        builder,
		Retriever:      retriever,
		RespCache:      respCache,
		Composer:       composer,
		RequestTimeout: cfg.Server.ReadTimeout,
		TopKDefault:    cfg.Retrieval.TopKDefault,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

// newEmbedder selects the remote embedding client when an API key is
// configured, otherwise the deterministic local embedder.
func newEmbedder(cfg *config.Config, logger *observability.Logger) embedding.Embedder {
	if cfg.Embedding.APIKey != "" {
		client, err := embedding.NewClient(embedding.Config{
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
		if err == nil {
			return client
		}
		logger.Warn().Err(err).Msg("Failed to create embedding client, using local embedder")
	}
	return embedding.NewHashEmbedder(cfg.Embedding.Dimension)
}

func newCacheClient(cfg *config.Config, logger *observability.Logger) cache.Client {
	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err == nil {
			return client
		}
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
	}
	return cache.NewMemoryClient(cfg.Cache.MaxEntries)
}

// loadOrBuildIndex loads the persisted snapshot when it matches the
// current catalog, rebuilds when the catalog changed, and refuses to
// start on inconsistent artifacts. A mismatch between the vector data and
// its metadata side table means the artifacts were corrupted or partially
// written; serving them would silently return wrong results.
func loadOrBuildIndex(
	ctx context.Context,
	logger *observability.Logger,
	store *index.Store,
	builder *index.Builder,
	cat *catalog.Catalog,
) (*index.Snapshot, error) {
	snap, err := store.Load(ctx)
	switch {
	case errors.Is(err, index.ErrVersionMismatch):
		return nil, fmt.Errorf("refusing to serve inconsistent index artifacts: %w", err)
	case err == nil && snap.Fingerprint == cat.Fingerprint():
		logger.Info().
			Int("indexed", snap.Index.Count()).
			Str("fingerprint", snap.Fingerprint).
			Msg("Loaded persisted index")
		return snap, nil
	case err == nil:
		logger.Warn().
			Str("index_fingerprint", snap.Fingerprint).
			Str("catalog_fingerprint", cat.Fingerprint()).
			Msg("Persisted index is for a different catalog version, rebuilding")
	default:
		logger.Info().Err(err).Msg("No usable persisted index, building")
	}

	snap, err = builder.Build(ctx, cat, nil)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := store.Save(snap); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist built index")
	}
	logger.Info().
		Int("indexed", snap.Index.Count()).
		Str("fingerprint", snap.Fingerprint).
		Msg("Index built")
	return snap, nil
}
