package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cartline-ai/cartline/internal/config"
	"github.com/cartline-ai/cartline/internal/index"
)

var inspectPath string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the manifest of a persisted index",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectPath, "index", "", "index path (defaults to config)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	path := inspectPath
	if path == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Index.Path
	}

	store, err := index.OpenStore(path)
	if err != nil {
		return fmt.Errorf("open index store: %w", err)
	}
	defer store.Close()

	manifest, err := store.Manifest()
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	label := color.New(color.FgCyan, color.Bold)
	label.Printf("Index: ")
	fmt.Println(path)
	label.Printf("Fingerprint: ")
	fmt.Println(manifest.Fingerprint)
	label.Printf("Model: ")
	fmt.Println(manifest.Model)
	label.Printf("Dimension: ")
	fmt.Println(manifest.Dimension)
	label.Printf("Vectors: ")
	fmt.Println(manifest.Count)
	label.Printf("Built: ")
	fmt.Println(manifest.BuiltAt.Format("2006-01-02 15:04:05 MST"))

	return nil
}
