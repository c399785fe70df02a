package core

import (
	"context"
	"duesdesk/internal/infra/persistence/memory"
	"duesdesk/internal/infra/persistence/postgres"
	"duesdesk/internal/infra/persistence/sqlite"
	"duesdesk/pkg/domain"
	"fmt"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterises a backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenKVStore opens the configured backend. The returned close function
// releases any database handle and is never nil.
func OpenKVStore(ctx context.Context, cfg StorageConfig) (domain.KVStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(), noop, nil
	case StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
