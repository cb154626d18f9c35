package database

import (
	"fmt"
	"os"
	"path/filepath"

	"filehost/internal/config"
	"filehost/internal/filehost"
)

// Migrator is implemented by stores with a versioned schema.
type Migrator interface {
	Migrate() error
	CheckMigrations() error
}

// NewStoreFromConfig creates a MetadataStore implementation based on the database config type.
// SQLite stores are migrated when AutoMigrate is set and checked otherwise.
func NewStoreFromConfig(cfg config.DatabaseConfig) (filehost.MetadataStore, error) {
	var (
		store filehost.MetadataStore
		err   error
	)
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		store, err = NewSQLiteStore(filepath.Join(cfg.DataDir, "filehost.db"))
	case "memory":
		store, err = NewSQLiteStore(":memory:")
	case "badger":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for badger database")
		}
		store, err = NewBadgerStore(filepath.Join(cfg.DataDir, "badger"))
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if m, ok := store.(Migrator); ok {
		// An in-memory database is always fresh.
		if cfg.AutoMigrate || cfg.Type == "memory" {
			err = m.Migrate()
		} else {
			err = m.CheckMigrations()
		}
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("database schema: %w", err)
		}
	}
	return store, nil
}
