// Package main provides the offline index builder CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "index-builder",
	Short: "Build and inspect product vector indexes",
	Long: `index-builder converts a product catalog CSV into a persisted vector
index with a metadata side table, ready to be served by the chat API.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		failure("%v", err)
		os.Exit(1)
	}
}
