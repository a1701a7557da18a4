package app

import (
	"context"
	"fmt"

	"github.com/roach88/chronicle/internal/config"
	"github.com/roach88/chronicle/internal/store"
	"github.com/roach88/chronicle/internal/store/mongo"
	"github.com/roach88/chronicle/internal/store/postgres"
	"github.com/roach88/chronicle/internal/store/sqlite"
)

// NewStore builds the adapter cfg selects without connecting it.
func NewStore(cfg config.StorageConfig) (store.Adapter, error) {
	if err := store.CheckBackend(cfg.Backend); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case store.BackendPostgres:
		return postgres.New(postgres.Options{DSN: cfg.DSN, MaxConns: cfg.MaxConns, Compress: cfg.CompressExtra})
	case store.BackendMongo:
		return mongo.New(mongo.Options{URI: cfg.DSN, Database: cfg.Database, MaxPool: uint64(cfg.MaxConns), Compress: cfg.CompressExtra})
	default:
		return sqlite.New(sqlite.Options{Path: cfg.DSN, Driver: cfg.Driver, Compress: cfg.CompressExtra})
	}
}

// OpenStore builds and connects the configured adapter.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (store.Adapter, error) {
	a, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return a, nil
}
