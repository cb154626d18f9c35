// Package protection persists the protected-directory table.
package protection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/spf13/afero"

	"filehost/internal/filehost"
)

// document is the on-disk format of the protection file.
type document struct {
	Directories map[string]string `json:"directories"`
}

// FileStore keeps the table in a JSON file. The file lives under the upload
// root with a dot-prefixed name, so it is never listed or indexed as content.
type FileStore struct {
	fsys afero.Fs
	name string
}

// NewFileStore creates a store writing name (a plain file name) on fsys.
func NewFileStore(fsys afero.Fs, name string) *FileStore {
	return &FileStore{fsys: fsys, name: "/" + name}
}

// Load reads the table. A missing file yields an empty table.
func (s *FileStore) Load(ctx context.Context) (map[string]string, error) {
	data, err := afero.ReadFile(s.fsys, s.name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.name, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.name, err)
	}
	if doc.Directories == nil {
		doc.Directories = map[string]string{}
	}
	return doc.Directories, nil
}

// Save rewrites the whole file through a temp file and a rename.
func (s *FileStore) Save(ctx context.Context, entries map[string]string) error {
	if entries == nil {
		entries = map[string]string{}
	}
	data, err := json.MarshalIndent(document{Directories: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding protection table: %w", err)
	}

	dir := path.Dir(s.name)
	tmp, err := afero.TempFile(s.fsys, dir, path.Base(s.name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := path.Join(dir, path.Base(tmp.Name()))

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fsys.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fsys.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := s.fsys.Rename(tmpPath, s.name); err != nil {
		s.fsys.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", s.name, err)
	}
	return nil
}

// Compile-time check that FileStore implements filehost.ProtectionStore
var _ filehost.ProtectionStore = (*FileStore)(nil)
