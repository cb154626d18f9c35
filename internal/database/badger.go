package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"filehost/internal/filehost"
)

// Key layout:
//
//	file/<id>           -> JSON-encoded filehost.FileRecord
//	path/<relativePath> -> id
const (
	filePrefix = "file/"
	pathPrefix = "path/"
)

func fileKey(id string) []byte {
	return []byte(filePrefix + id)
}

func pathKey(relativePath string) []byte {
	return []byte(pathPrefix + relativePath)
}

// BadgerStore implements filehost.MetadataStore on an embedded Badger database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database in dir.
// An empty dir opens an in-memory database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Insert(ctx context.Context, record *filehost.FileRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, fileKey(record.ID)); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: %s", filehost.ErrDuplicateID, record.ID)
		}
		if exists, err := keyExists(txn, pathKey(record.RelativePath)); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: %s", filehost.ErrDuplicatePath, record.RelativePath)
		}

		if err := txn.Set(fileKey(record.ID), value); err != nil {
			return fmt.Errorf("storing record: %w", err)
		}
		if err := txn.Set(pathKey(record.RelativePath), []byte(record.ID)); err != nil {
			return fmt.Errorf("storing path index: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) GetByID(ctx context.Context, id string) (*filehost.FileRecord, error) {
	var rec *filehost.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BadgerStore) ListByDirectory(ctx context.Context, directory string) ([]*filehost.FileRecord, error) {
	return s.Scan(ctx, filehost.ScanFilter{Directory: &directory})
}

func (s *BadgerStore) Scan(ctx context.Context, filter filehost.ScanFilter) ([]*filehost.FileRecord, error) {
	query := strings.ToLower(strings.TrimSpace(filter.NameContains))
	var out []*filehost.FileRecord
	err := s.eachRecord(ctx, func(rec *filehost.FileRecord) {
		if filter.Directory != nil && rec.Directory != *filter.Directory {
			return
		}
		if query != "" && !strings.Contains(strings.ToLower(rec.OriginalName), query) {
			return
		}
		out = append(out, rec)
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *BadgerStore) ListAll(ctx context.Context) ([]*filehost.FileRecord, error) {
	return s.Scan(ctx, filehost.ScanFilter{})
}

func (s *BadgerStore) Update(ctx context.Context, id string, update filehost.FileUpdate) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		oldPath := rec.RelativePath
		update.Apply(rec)

		if rec.RelativePath != oldPath {
			if exists, err := keyExists(txn, pathKey(rec.RelativePath)); err != nil {
				return err
			} else if exists {
				return fmt.Errorf("%w: %s", filehost.ErrDuplicatePath, rec.RelativePath)
			}
			if err := txn.Delete(pathKey(oldPath)); err != nil {
				return fmt.Errorf("removing path index: %w", err)
			}
			if err := txn.Set(pathKey(rec.RelativePath), []byte(id)); err != nil {
				return fmt.Errorf("storing path index: %w", err)
			}
		}

		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		return txn.Set(fileKey(id), value)
	})
}

func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		return deleteRecord(txn, rec)
	})
}

func (s *BadgerStore) DeleteByPathPrefix(ctx context.Context, prefix string) (int64, error) {
	var removed int64
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pathKey(strings.TrimSuffix(prefix, "/") + "/")

		var ids []string
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				it.Close()
				return err
			}
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				it.Close()
				return fmt.Errorf("reading path index: %w", err)
			}
			ids = append(ids, string(id))
		}
		it.Close()

		for _, id := range ids {
			rec, err := getRecord(txn, id)
			if errors.Is(err, filehost.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := deleteRecord(txn, rec); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting files under %s: %w", prefix, err)
	}
	return removed, nil
}

func (s *BadgerStore) CountAndTotalSize(ctx context.Context) (int64, int64, error) {
	var count, total int64
	err := s.eachRecord(ctx, func(rec *filehost.FileRecord) {
		count++
		total += rec.Size
	})
	if err != nil {
		return 0, 0, err
	}
	return count, total, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// eachRecord decodes every stored record in key order.
func (s *BadgerStore) eachRecord(ctx context.Context, fn func(*filehost.FileRecord)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(filePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec filehost.FileRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decoding record %s: %w", it.Item().Key(), err)
			}
			fn(&rec)
		}
		return nil
	})
}

func getRecord(txn *badger.Txn, id string) (*filehost.FileRecord, error) {
	item, err := txn.Get(fileKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: file %s", filehost.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}

	var rec filehost.FileRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}
	return &rec, nil
}

func deleteRecord(txn *badger.Txn, rec *filehost.FileRecord) error {
	if err := txn.Delete(fileKey(rec.ID)); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if err := txn.Delete(pathKey(rec.RelativePath)); err != nil {
		return fmt.Errorf("deleting path index: %w", err)
	}
	return nil
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func sortNewestFirst(records []*filehost.FileRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].UploadedAt.After(records[j].UploadedAt)
		}
		return records[i].ID < records[j].ID
	})
}

// Compile-time check that BadgerStore implements filehost.MetadataStore
var _ filehost.MetadataStore = (*BadgerStore)(nil)
