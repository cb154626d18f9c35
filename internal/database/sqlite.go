package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"filehost/internal/database/migrations"
	"filehost/internal/database/sqlc"
	"filehost/internal/filehost"
)

// SQLiteStore implements filehost.MetadataStore on SQLite.
type SQLiteStore struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
}

// NewSQLiteStore opens the database at path.
// path can be a file path or ":memory:" for an in-memory database.
// The schema is not touched; call Migrate or CheckMigrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{
		db:      db,
		queries: sqlc.New(db),
		path:    path,
	}, nil
}

// NewSQLiteStoreFromDB wraps an existing, already configured connection.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:      db,
		queries: sqlc.New(db),
	}
}

// driverName is go-sqlite3 with filehost_lower registered on every
// connection. SQLite's built-in LOWER only folds ASCII, so name searches
// would miss "ÉTÉ.txt" for the query "été".
const driverName = "sqlite3_filehost"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("filehost_lower", strings.ToLower, true)
		},
	})
}

// OpenConnection opens a SQLite connection configured the way the store expects.
// Connection settings go through the DSN so every pooled connection gets them.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return migrations.Up(s.db)
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.Check(s.db)
}

// BackupTo writes a consistent copy of the database to dest, which must not exist.
func (s *SQLiteStore) BackupTo(ctx context.Context, dest string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("backing up database to %s: %w", dest, err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, record *filehost.FileRecord) error {
	err := s.queries.InsertFile(ctx, sqlc.InsertFileParams{
		ID:           record.ID,
		StoredName:   record.StoredName,
		Directory:    record.Directory,
		RelativePath: record.RelativePath,
		OriginalName: record.OriginalName,
		Size:         record.Size,
		UploadedAt:   record.UploadedAt.UTC(),
		Extension:    record.Extension,
	})
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.ExtendedCode {
			case sqlite3.ErrConstraintPrimaryKey:
				return fmt.Errorf("%w: %s", filehost.ErrDuplicateID, record.ID)
			case sqlite3.ErrConstraintUnique:
				return fmt.Errorf("%w: %s", filehost.ErrDuplicatePath, record.RelativePath)
			}
		}
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*filehost.FileRecord, error) {
	row, err := s.queries.GetFileByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: file %s", filehost.ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return toRecord(row), nil
}

func (s *SQLiteStore) ListByDirectory(ctx context.Context, directory string) ([]*filehost.FileRecord, error) {
	rows, err := s.queries.ListFilesByDirectory(ctx, directory)
	if err != nil {
		return nil, fmt.Errorf("listing files by directory: %w", err)
	}
	return toRecords(rows), nil
}

func (s *SQLiteStore) Scan(ctx context.Context, filter filehost.ScanFilter) ([]*filehost.FileRecord, error) {
	var (
		rows []sqlc.File
		err  error
	)
	query := escapeLike(filter.NameContains)
	switch {
	case filter.Directory == nil && query == "":
		rows, err = s.queries.ListFiles(ctx)
	case filter.Directory == nil:
		rows, err = s.queries.SearchFiles(ctx, query)
	case query == "":
		rows, err = s.queries.ListFilesByDirectory(ctx, *filter.Directory)
	default:
		rows, err = s.queries.SearchFilesByDirectory(ctx, sqlc.SearchFilesByDirectoryParams{
			Directory: *filter.Directory,
			Query:     query,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("scanning files: %w", err)
	}
	return toRecords(rows), nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]*filehost.FileRecord, error) {
	rows, err := s.queries.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return toRecords(rows), nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, update filehost.FileUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	row, err := qtx.GetFileByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: file %s", filehost.ErrNotFound, id)
		}
		return fmt.Errorf("getting file: %w", err)
	}

	rec := toRecord(row)
	update.Apply(rec)
	_, err = qtx.UpdateFile(ctx, sqlc.UpdateFileParams{
		StoredName:   rec.StoredName,
		Directory:    rec.Directory,
		RelativePath: rec.RelativePath,
		OriginalName: rec.OriginalName,
		Extension:    rec.Extension,
		ID:           id,
	})
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", filehost.ErrDuplicatePath, rec.RelativePath)
		}
		return fmt.Errorf("updating file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	n, err := s.queries.DeleteFile(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: file %s", filehost.ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) DeleteByPathPrefix(ctx context.Context, prefix string) (int64, error) {
	n, err := s.queries.DeleteFilesByPathPrefix(ctx, strings.TrimSuffix(prefix, "/")+"/")
	if err != nil {
		return 0, fmt.Errorf("deleting files under %s: %w", prefix, err)
	}
	return n, nil
}

func (s *SQLiteStore) CountAndTotalSize(ctx context.Context) (int64, int64, error) {
	row, err := s.queries.CountFiles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("counting files: %w", err)
	}
	return row.Count, row.TotalSize, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toRecord(f sqlc.File) *filehost.FileRecord {
	return &filehost.FileRecord{
		ID:           f.ID,
		StoredName:   f.StoredName,
		Directory:    f.Directory,
		RelativePath: f.RelativePath,
		OriginalName: f.OriginalName,
		Size:         f.Size,
		UploadedAt:   f.UploadedAt,
		Extension:    f.Extension,
	}
}

func toRecords(rows []sqlc.File) []*filehost.FileRecord {
	out := make([]*filehost.FileRecord, len(rows))
	for i, r := range rows {
		out[i] = toRecord(r)
	}
	return out
}

// escapeLike escapes LIKE wildcards so the query matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.TrimSpace(s))
}

// Compile-time check that SQLiteStore implements filehost.MetadataStore
var _ filehost.MetadataStore = (*SQLiteStore)(nil)
