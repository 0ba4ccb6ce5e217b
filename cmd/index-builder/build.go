package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cartline-ai/cartline/internal/catalog"
	"github.com/cartline-ai/cartline/internal/config"
	"github.com/cartline-ai/cartline/internal/embedding"
	"github.com/cartline-ai/cartline/internal/index"
	"github.com/cartline-ai/cartline/internal/observability"
)

var (
	buildCatalogPath string
	buildOutputPath  string
	buildBatchSize   int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a vector index from a product catalog",
	Long: `Build embeds every product in the catalog CSV and writes the vector
index plus its metadata side table to the output file. Products whose
embedding fails are skipped; the build only aborts when nothing could be
indexed.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildCatalogPath, "catalog", "", "catalog CSV path (defaults to config)")
	buildCmd.Flags().StringVar(&buildOutputPath, "out", "", "output index path (defaults to config)")
	buildCmd.Flags().IntVar(&buildBatchSize, "batch-size", 0, "embedding batch size (defaults to config)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	catalogPath := buildCatalogPath
	if catalogPath == "" {
		catalogPath = cfg.Catalog.Path
	}
	outputPath := buildOutputPath
	if outputPath == "" {
		outputPath = cfg.Index.Path
	}
	batchSize := buildBatchSize
	if batchSize <= 0 {
		batchSize = cfg.Index.BatchSize
	}

	logger := observability.Nop()
	if verbose {
		logger = observability.DefaultLogger()
	}

	sp := newSpinner("Loading catalog " + catalogPath)
	sp.Start()
	cat, err := catalog.LoadCSV(catalogPath, logger)
	sp.Stop()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	info("Loaded %d products (fingerprint %s)", cat.Len(), cat.Fingerprint())

	embedder := newEmbedder(cfg, logger)
	info("Embedding with %s (%d dimensions)", embedder.Model(), embedder.Dimension())

	builder := index.NewBuilder(logger, embedder, batchSize)

	bar := newProgressBar(int64(cat.Len()), "Embedding products")
	snap, err := builder.Build(ctx, cat, func(done, total int) {
		_ = bar.Set64(int64(done))
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	store, err := index.OpenStore(outputPath)
	if err != nil {
		return fmt.Errorf("open index store: %w", err)
	}
	defer store.Close()

	if err := store.Save(snap); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	skipped := cat.Len() - snap.Index.Count()
	success("Indexed %d products to %s", snap.Index.Count(), outputPath)
	if skipped > 0 {
		info("Skipped %d products that failed to embed", skipped)
	}
	return nil
}

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
		logger.Warn().Err(err).Msg("failed to create embedding client, using local embedder")
	}
	return embedding.NewHashEmbedder(cfg.Embedding.Dimension)
}
