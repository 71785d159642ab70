package backend

import (
	"context"
	"fmt"

	"dietledger/internal/ledger"
	"dietledger/internal/ledger/memory"
	"dietledger/internal/log"
	"dietledger/internal/storage"
)

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured store. The caller owns Cleanup.
func (f *DefaultFactory) CreateBackend(_ context.Context, config Config, categories ledger.CategoryLister) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, categories, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "path", config.SQLiteDBPath)
		return &BackendResult{Store: repo, Cleanup: repo.Close}, nil

	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		store := memory.NewFromFiles(dataDir, categories)
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
		return &BackendResult{Store: store}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
