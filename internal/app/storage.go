// Package app wires the reading core for the executables.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/config"
	"github.com/aliskhannn/quran-companion/internal/infra/pebblestore"
	"github.com/aliskhannn/quran-companion/internal/infra/postgres"
	"github.com/aliskhannn/quran-companion/internal/infra/postgres/repository"
	"github.com/aliskhannn/quran-companion/internal/storage"
)

// OpenStorage opens the persistence backend selected by cfg. The returned
// function releases it.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.KV, func(), error) {
	logger = logger.With(zap.String("backend", cfg.Storage.Backend))

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		logger.Warn("reading progress will not survive a restart")
		return storage.NewMemory(), func() {}, nil

	case config.StorageFile:
		kv, err := storage.OpenFile(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open state file: %w", err)
		}
		logger.Info("storage opened", zap.String("path", cfg.Storage.Path))
		return kv, func() {}, nil

	case config.StoragePebble:
		st, err := pebblestore.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("storage opened", zap.String("path", cfg.Storage.Path))
		return st, func() {
			if err := st.Close(); err != nil {
				logger.Error("failed to close pebble store", zap.Error(err))
			}
		}, nil

	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		repo := repository.NewKVRepository(pool, postgres.NewTransactor(pool))
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("storage opened")
		return repo, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownStorageBackend, cfg.Storage.Backend)
	}
}
