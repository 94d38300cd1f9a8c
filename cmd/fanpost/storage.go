// ABOUTME: Opens the post store on the configured snapshot backend
// ABOUTME: Creates the data directory and hooks save timings into metrics

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/2389/fanpost/internal/config"
	"github.com/2389/fanpost/internal/metrics"
	"github.com/2389/fanpost/internal/store"
)

func openStore(ctx context.Context, cfg config.StorageConfig, m *metrics.Metrics, logger *slog.Logger) (*store.Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	var backend store.Snapshotter
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := store.NewSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		backend = db
	default:
		backend = store.NewJSONFile(cfg.Path)
	}

	return store.Open(ctx, backend,
		store.WithLogger(logger),
		store.WithSaveObserver(m.Save),
	), nil
}
