package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"

	"filehost/internal/filehost"
)

// FilesystemMirror copies uploads into a second directory tree, typically on
// another disk or a network mount. The tree mirrors the upload root layout.
type FilesystemMirror struct {
	fsys afero.Fs
}

// NewFilesystemMirror creates a mirror rooted at root, creating it if needed.
func NewFilesystemMirror(root string) (*FilesystemMirror, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mirror root: %w", err)
	}
	return NewFilesystemMirrorFs(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// NewFilesystemMirrorFs creates a mirror over an existing filesystem.
func NewFilesystemMirrorFs(fsys afero.Fs) *FilesystemMirror {
	return &FilesystemMirror{fsys: fsys}
}

func (m *FilesystemMirror) Name() string { return "filesystem" }

// Put writes r to relativePath through a temp file and a rename, so readers
// of the mirror never see a partial copy. A non-negative size is verified.
func (m *FilesystemMirror) Put(ctx context.Context, relativePath string, r io.Reader, size int64) error {
	dest := "/" + relativePath
	dir := path.Dir(dest)
	if err := m.fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create mirror directory: %w", err)
	}

	tmp, err := afero.TempFile(m.fsys, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := path.Join(dir, path.Base(tmp.Name()))

	success := false
	defer func() {
		if !success {
			m.fsys.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := m.fsys.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Compile-time check that FilesystemMirror implements filehost.Mirror
var _ filehost.Mirror = (*FilesystemMirror)(nil)
