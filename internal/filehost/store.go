package filehost

import "context"

// MetadataStore provides durable storage for file records, keyed by ID.
// Implementations must be safe for concurrent use.
type MetadataStore interface {
	// Insert stores a new record. Returns ErrDuplicateID if the ID exists
	// and ErrDuplicatePath if another record owns the same relative path.
	Insert(ctx context.Context, record *FileRecord) error

	// GetByID returns the record with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*FileRecord, error)

	// ListByDirectory returns records whose directory matches exactly.
	ListByDirectory(ctx context.Context, directory string) ([]*FileRecord, error)

	// Scan returns records matching the filter, newest upload first.
	Scan(ctx context.Context, filter ScanFilter) ([]*FileRecord, error)

	// ListAll returns every record.
	ListAll(ctx context.Context) ([]*FileRecord, error)

	// Update overwrites the non-nil fields of the record. Returns ErrNotFound if absent.
	Update(ctx context.Context, id string, update FileUpdate) error

	// Delete removes the record. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// DeleteByPathPrefix removes every record whose relative path lies under prefix.
	// Returns the number of removed records.
	DeleteByPathPrefix(ctx context.Context, prefix string) (int64, error)

	// CountAndTotalSize returns the number of records and the sum of their sizes.
	CountAndTotalSize(ctx context.Context) (int64, int64, error)

	// Close releases the underlying connection.
	Close() error
}
