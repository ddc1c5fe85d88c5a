package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/chatmd/internal/api"
	"github.com/dgallion1/chatmd/internal/archive"
	"github.com/dgallion1/chatmd/internal/config"
	"github.com/dgallion1/chatmd/internal/pipeline"
	"github.com/dgallion1/chatmd/internal/platform"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// run serves until ctx is cancelled. It returns only after the workers have
// drained and the archive and its index are closed.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Optional archive.
	var store *archive.Store
	var arch pipeline.Archive
	if cfg.ArchivePath != "" {
		var err error
		store, err = archive.New(cfg.ArchivePath)
		if err != nil {
			return fmt.Errorf("open archive %s: %w", cfg.ArchivePath, err)
		}
		defer store.Close()

		index, err := archive.OpenIndex(cfg.SearchIndexPath)
		if err != nil {
			return fmt.Errorf("open search index %s: %w", cfg.SearchIndexPath, err)
		}
		defer index.Close()

		if err := store.AttachIndex(ctx, index); err != nil {
			return fmt.Errorf("index archive: %w", err)
		}
		arch = store
		log.Info("archive enabled", "path", cfg.ArchivePath, "index", cfg.SearchIndexPath)
	}

	// Initialize pipeline.
	registry := platform.NewRegistry(platform.DefaultProfiles(), time.Now)
	orch := pipeline.NewOrchestrator(cfg, registry, arch, log)
	orch.Start(context.Background())
	defer orch.Stop()

	// Initialize HTTP server.
	srv := api.NewServer(orch, store, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting chatmd", "port", cfg.Port, "workers", cfg.WorkerCount, "auth", cfg.APIKey != "")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown.
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	return nil
}
