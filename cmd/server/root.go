package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/raffaelramalhorosa/econdash/internal/catalog"
	"github.com/raffaelramalhorosa/econdash/internal/config"
	"github.com/raffaelramalhorosa/econdash/internal/fetcher"
)

var (
	feedsPath string
	cfg       *config.Config
	cat       *catalog.Catalog
)

var rootCmd = &cobra.Command{
	Use:   "econdash",
	Short: "Economic news feed aggregator",
	Long: `econdash aggregates RSS/Atom feeds and public economic datasets behind
a small JSON API. Categories are refreshed in rotation, one per request, and
last-known-good results are kept in a durable fallback store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		path := cfg.Feeds.File
		if feedsPath != "" {
			path = feedsPath
		}
		cat, err = catalog.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load feed catalog: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&feedsPath, "feeds", "", "feed catalog YAML file (default: built-in catalog)")
}

func newLogger(w io.Writer, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Server.LogLevel}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newFetcher(logger *slog.Logger) *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		Timeout:     cfg.Fetch.Timeout,
		UserAgent:   cfg.Fetch.UserAgent,
		MaxParallel: cfg.Fetch.MaxParallel,
		Retry: fetcher.RetryPolicy{
			MaxRetries:   cfg.Fetch.RetryMax,
			BaseDelay:    cfg.Fetch.RetryBaseDelay,
			Multiplier:   cfg.Fetch.RetryMultiplier,
			NonRetryable: fetcher.DefaultRetryPolicy().NonRetryable,
		},
	}, logger)
}
