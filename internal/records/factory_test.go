package records_test

import (
	"context"
	"errors"
	"testing"

	"mcs-go/internal/config"
	"mcs-go/internal/records"
	"mcs-go/internal/records/migrations"
)

func TestNewSourceFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory store is migrated", func(t *testing.T) {
		src, err := records.NewSourceFromConfig(ctx, config.RecordsConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewSourceFromConfig() error = %v", err)
		}
		defer src.Close()

		if _, err := src.ListRecords(ctx, "", 10); err != nil {
			t.Errorf("ListRecords() error = %v", err)
		}
	})

	t.Run("sqlite store requires migration", func(t *testing.T) {
		cfg := config.RecordsConfig{Type: "sqlite", DataDir: t.TempDir()}

		_, err := records.NewSourceFromConfig(ctx, cfg)
		if !errors.Is(err, migrations.ErrNeedsMigration) {
			t.Fatalf("NewSourceFromConfig() error = %v, want ErrNeedsMigration", err)
		}

		if err := records.MigrateFromConfig(cfg); err != nil {
			t.Fatalf("MigrateFromConfig() error = %v", err)
		}

		src, err := records.NewSourceFromConfig(ctx, cfg)
		if err != nil {
			t.Fatalf("NewSourceFromConfig() after migrate error = %v", err)
		}
		src.Close()
	})

	t.Run("sqlite store without data dir", func(t *testing.T) {
		if _, err := records.NewSourceFromConfig(ctx, config.RecordsConfig{Type: "sqlite"}); err == nil {
			t.Error("NewSourceFromConfig() expected error")
		}
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		if _, err := records.NewSourceFromConfig(ctx, config.RecordsConfig{Type: "postgres"}); err == nil {
			t.Error("NewSourceFromConfig() expected error")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := records.NewSourceFromConfig(ctx, config.RecordsConfig{Type: "mongo"}); err == nil {
			t.Error("NewSourceFromConfig() expected error")
		}
	})
}

func TestMigrateFromConfig_RejectsNonSQLite(t *testing.T) {
	if err := records.MigrateFromConfig(config.RecordsConfig{Type: "postgres", DSN: "postgres://x"}); err == nil {
		t.Error("MigrateFromConfig() expected error for postgres")
	}
}
