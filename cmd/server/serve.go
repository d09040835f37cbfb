package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raffaelramalhorosa/econdash/internal/aggregator"
	"github.com/raffaelramalhorosa/econdash/internal/api"
	"github.com/raffaelramalhorosa/econdash/internal/dataset"
	"github.com/raffaelramalhorosa/econdash/internal/edgecache"
	"github.com/raffaelramalhorosa/econdash/internal/fallback"
	"github.com/raffaelramalhorosa/econdash/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stdout, true)

		// --- Dependencies ---
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		durable, err := fallback.Open(ctx, fallback.Options{
			Backend:          cfg.Fallback.Backend,
			DSN:              cfg.Fallback.DSN,
			FirestoreProject: cfg.Fallback.FirestoreProject,
			FirestoreCreds:   cfg.Fallback.FirestoreCredentials,
		})
		if err != nil {
			return fmt.Errorf("failed to open fallback store: %w", err)
		}
		defer durable.Close()

		snaps := fallback.NewSnapshots(durable, cfg.Fallback.TTL, nil, logger)
		st := store.New(cfg.Feeds.TTL, nil)
		feeds := aggregator.New(cat, newFetcher(logger), st, snaps, cfg.Feeds.StreamLimit, logger)
		datasets := dataset.New(cat, snaps, dataset.Options{
			Timeout:   cfg.Fetch.Timeout,
			TTL:       cfg.Cache.DatasetTTL,
			UserAgent: cfg.Fetch.UserAgent,
		}, logger)

		opts := api.Options{HandlerTimeout: cfg.Server.HandlerTimeout}
		if cfg.Cache.EdgeEnabled {
			opts.Edge, err = edgecache.New(cfg.Cache.EdgeSize, cfg.Cache.EdgeTTL)
			if err != nil {
				return fmt.Errorf("failed to create edge cache: %w", err)
			}
		}
		srv := api.New(feeds, datasets, opts, logger)

		// --- Background warmer ---
		warmerDone := make(chan struct{})
		if cfg.Feeds.WarmInterval > 0 {
			go func() {
				defer close(warmerDone)
				aggregator.NewWarmer(feeds, cfg.Feeds.WarmInterval, logger).Start(ctx)
			}()
		} else {
			close(warmerDone)
		}

		// --- HTTP server ---
		port := fmt.Sprint(cfg.Server.Port)
		httpServer := &http.Server{
			Addr:         ":" + port,
			Handler:      srv,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: cfg.Server.HandlerTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server started",
				"port", port,
				"categories", len(cat.Categories()),
				"fallback", cfg.Fallback.Backend,
			)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		// --- Graceful shutdown ---
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-quit:
		case err := <-errCh:
			logger.Error("server error", "error", err)
			cancel()
			<-warmerDone
			snaps.Wait()
			return err
		}

		logger.Info("shutting down...")

		cancel() // stop the warmer

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		// Start returns only once an in-flight refresh has published.
		<-warmerDone
		snaps.Wait()

		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
