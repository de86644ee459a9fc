package records

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mcs-go/internal/config"
	"mcs-go/internal/mcs"
)

// Source is a RecordSource owning a connection that must be closed.
type Source interface {
	mcs.RecordSource
	Close() error
}

// DBFileName is the sqlite record store's file name inside data_dir.
const DBFileName = "records.db"

// NewSourceFromConfig creates the record source selected by cfg.Type.
// The sqlite store must already be migrated (see `mcs records migrate`);
// the memory store is migrated on creation.
func NewSourceFromConfig(ctx context.Context, cfg config.RecordsConfig) (Source, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite record store")
		}
		src, err := NewSQLiteSource(filepath.Join(cfg.DataDir, DBFileName), nil)
		if err != nil {
			return nil, err
		}
		if err := src.CheckMigrations(); err != nil {
			src.Close()
			return nil, fmt.Errorf("record store schema out of date: %w", err)
		}
		return src, nil
	case "memory":
		src, err := NewSQLiteSource(":memory:", nil)
		if err != nil {
			return nil, err
		}
		if err := src.MigrateUp(); err != nil {
			src.Close()
			return nil, err
		}
		return src, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres record source")
		}
		return NewPostgresSource(ctx, cfg.DSN, cfg.Table)
	default:
		return nil, fmt.Errorf("unknown record store type: %s", cfg.Type)
	}
}

// MigrateFromConfig creates or upgrades the sqlite record store.
func MigrateFromConfig(cfg config.RecordsConfig) error {
	if cfg.Type != "sqlite" {
		return fmt.Errorf("record store type %q has no local schema to migrate", cfg.Type)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	src, err := NewSQLiteSource(filepath.Join(cfg.DataDir, DBFileName), nil)
	if err != nil {
		return err
	}
	defer src.Close()

	return src.MigrateUp()
}
