package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"filehost/internal/config"
	"filehost/internal/database/migrations"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory database is migrated", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer got.Close()

		if _, _, err := got.CountAndTotalSize(context.Background()); err != nil {
			t.Errorf("store not usable: %v", err)
		}
	})

	t.Run("sqlite database with auto migrate", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dir, AutoMigrate: true})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer got.Close()

		if _, err := os.Stat(filepath.Join(dir, "filehost.db")); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("sqlite database without migration fails the check", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()})
		if !errors.Is(err, migrations.ErrNeedsMigration) {
			t.Errorf("NewStoreFromConfig() error = %v, want ErrNeedsMigration", err)
		}
		if got != nil {
			t.Error("NewStoreFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite"})
		if err == nil {
			t.Error("NewStoreFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			got.Close()
		}
	})

	t.Run("badger database", func(t *testing.T) {
		dir := t.TempDir()
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "badger", DataDir: dir})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer got.Close()

		if _, ok := got.(*BadgerStore); !ok {
			t.Errorf("NewStoreFromConfig() = %T, want *BadgerStore", got)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "postgres"})
		if err == nil {
			t.Error("NewStoreFromConfig() expected error for unknown type, got nil")
		}
		if got != nil {
			got.Close()
		}
	})
}
