// Package main provides the paperstream CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "paperstream",
	Short: "Personalized arXiv paper feed",
	Long: `paperstream maintains a personalized feed of arXiv papers.

Subscribe to topics (a category, an optional subcategory, and optional
keywords), then read a per-topic or cross-topic feed that is fetched with
mirror fallback, deduplicated, and cached locally across runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}
