package fs

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"filehost/internal/filehost"
)

// Manager is the afero-backed implementation of filehost.FilesystemManager.
// Every path it receives is relative to the upload root; the underlying
// afero.Fs is jailed to that root.
type Manager struct {
	fsys      afero.Fs
	root      string // real directory on disk, "" for in-memory filesystems
	ignore    *IgnoreMatcher
	diskUsage func() (uint64, uint64, error)
}

// NewOSManager creates a manager over the real directory root. The root is
// created if missing. Extra ignore patterns are read from IgnoreFileName in the root.
func NewOSManager(root string, ignore []string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating upload root: %w", err)
	}
	m, err := newManager(afero.NewBasePathFs(afero.NewOsFs(), root), ignore)
	if err != nil {
		return nil, err
	}
	m.root = root
	m.diskUsage = func() (uint64, uint64, error) { return diskUsage(root) }
	return m, nil
}

// NewMemManager creates a manager over an in-memory filesystem. Disk usage is reported as zero.
func NewMemManager(fsys afero.Fs, ignore []string) (*Manager, error) {
	return newManager(fsys, ignore)
}

func newManager(fsys afero.Fs, ignore []string) (*Manager, error) {
	extra, err := ParseIgnoreFile(fsys, abs(IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return &Manager{
		fsys:      fsys,
		ignore:    NewIgnoreMatcher(append(append([]string{}, ignore...), extra...)),
		diskUsage: func() (uint64, uint64, error) { return 0, 0, nil },
	}, nil
}

// Fs exposes the underlying filesystem, jailed to the upload root.
func (m *Manager) Fs() afero.Fs {
	return m.fsys
}

// RealPath maps a root-relative path to its location on disk. The afero
// BasePathFs already confines every operation to the root; RealPath applies
// the same containment rule for callers that need the real location.
func (m *Manager) RealPath(relativePath string) (string, error) {
	if m.root == "" {
		return "", errors.New("in-memory filesystem has no real path")
	}
	return filehost.ResolvePath(m.root, relativePath)
}

// abs anchors a root-relative path for afero.
func abs(relativePath string) string {
	return "/" + strings.TrimPrefix(relativePath, "/")
}

// Walk visits every regular, non-reserved, non-ignored file under the root.
func (m *Manager) Walk(fn filehost.WalkFunc) error {
	return afero.Walk(m.fsys, "/", func(p string, info iofs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, `\`, "/")), "/")
		if rel == "" {
			return nil
		}
		if filehost.IsReservedName(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() || m.ignore.Match(rel) {
			return nil
		}
		return fn(rel, info)
	})
}

// Stat returns fresh file info for a path.
func (m *Manager) Stat(relativePath string) (iofs.FileInfo, error) {
	return m.fsys.Stat(abs(relativePath))
}

// MkdirAll creates a directory and any missing parents.
func (m *Manager) MkdirAll(relativePath string) error {
	if relativePath == "" {
		return nil
	}
	return m.fsys.MkdirAll(abs(relativePath), 0755)
}

// WriteFile writes r to relativePath through a reserved temp file in the same
// directory, renaming it into place once every byte is on disk.
func (m *Manager) WriteFile(relativePath string, r io.Reader, limit int64) (int64, error) {
	dest := abs(relativePath)
	tmp, err := afero.TempFile(m.fsys, path.Dir(dest), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := path.Join(path.Dir(dest), path.Base(tmp.Name()))

	success := false
	defer func() {
		if !success {
			m.fsys.Remove(tmpPath)
		}
	}()

	src := r
	if limit > 0 {
		// Read one byte past the limit so oversize payloads are detected.
		src = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}
	if limit > 0 && written > limit {
		return 0, fmt.Errorf("%w: more than %d bytes", filehost.ErrPayloadTooLarge, limit)
	}

	if err := m.fsys.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return written, nil
}

// Open opens a stored file for reading.
func (m *Manager) Open(relativePath string) (filehost.File, error) {
	f, err := m.fsys.Open(abs(relativePath))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory: %w", relativePath, iofs.ErrNotExist)
	}
	return f, nil
}

// Rename moves a file. It refuses to overwrite an existing destination.
func (m *Manager) Rename(oldPath, newPath string) error {
	if _, err := m.fsys.Stat(abs(newPath)); err == nil {
		return fmt.Errorf("rename %s: %w", newPath, iofs.ErrExist)
	} else if !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	return m.fsys.Rename(abs(oldPath), abs(newPath))
}

// Remove deletes a single file.
func (m *Manager) Remove(relativePath string) error {
	return m.fsys.Remove(abs(relativePath))
}

// RemoveAll deletes a directory tree. The root itself is never removed.
func (m *Manager) RemoveAll(relativePath string) error {
	if relativePath == "" {
		return fmt.Errorf("refusing to remove the upload root")
	}
	return m.fsys.RemoveAll(abs(relativePath))
}

// ListDirectories returns the sorted names of immediate, non-reserved subdirectories.
func (m *Manager) ListDirectories(relativePath string) ([]string, error) {
	info, err := m.fsys.Stat(abs(relativePath))
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", relativePath, iofs.ErrNotExist)
	}

	entries, err := afero.ReadDir(m.fsys, abs(relativePath))
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !filehost.IsReservedName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// DiskUsage reports used and available bytes on the volume holding the root.
func (m *Manager) DiskUsage() (uint64, uint64, error) {
	return m.diskUsage()
}

// Compile-time check that Manager implements filehost.FilesystemManager
var _ filehost.FilesystemManager = (*Manager)(nil)
