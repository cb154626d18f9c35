package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestUp(t *testing.T) {
	t.Run("creates the files table on a fresh database", func(t *testing.T) {
		db := openTestDB(t)

		if err := Up(db); err != nil {
			t.Fatalf("Up() error = %v", err)
		}

		for _, table := range []string{"files", "schema_migrations"} {
			var name string
			err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
			if err != nil {
				t.Errorf("table %s was not created: %v", table, err)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		db := openTestDB(t)

		if err := Up(db); err != nil {
			t.Fatalf("first Up() error = %v", err)
		}
		if err := Up(db); err != nil {
			t.Errorf("second Up() error = %v", err)
		}
		if err := Check(db); err != nil {
			t.Errorf("Check() after double migration error = %v", err)
		}
	})
}

func TestCheck(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)

		if err := Check(db); !errors.Is(err, ErrNeedsMigration) {
			t.Errorf("Check() error = %v, want ErrNeedsMigration", err)
		}
	})

	t.Run("migrated database is current", func(t *testing.T) {
		db := openTestDB(t)
		if err := Up(db); err != nil {
			t.Fatalf("Up() error = %v", err)
		}

		if err := Check(db); err != nil {
			t.Errorf("Check() error = %v", err)
		}

		version, dirty, err := Version(db)
		if err != nil {
			t.Fatalf("Version() error = %v", err)
		}
		latest, _ := Latest()
		if version != latest || dirty {
			t.Errorf("Version() = %d (dirty=%v), want %d", version, dirty, latest)
		}
	})
}

func TestSchema_RelativePathUnique(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	insert := `INSERT INTO files (id, stored_name, directory, relative_path, original_name, size, uploaded_at, extension)
		VALUES (?, 'a.txt', '', 'a.txt', 'a.txt', 1, datetime('now'), '.txt')`
	if _, err := db.Exec(insert, "file-1"); err != nil {
		t.Fatalf("first insert error = %v", err)
	}
	if _, err := db.Exec(insert, "file-2"); err == nil {
		t.Error("expected unique constraint violation for duplicate relative_path")
	}
}

// openTestDB opens a single-connection in-memory SQLite database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
