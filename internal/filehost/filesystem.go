package filehost

import (
	"io"
	"io/fs"
)

// File is an open stored file, readable and seekable for ranged downloads.
type File interface {
	io.ReadSeekCloser
	Stat() (fs.FileInfo, error)
}

// WalkFunc is called for every regular content file found by Walk.
// relativePath uses forward slashes and is relative to the upload root.
type WalkFunc func(relativePath string, info fs.FileInfo) error

// FilesystemManager performs filesystem operations relative to the upload root.
// All paths are normalized, slash-separated and relative to the root ("" is the root).
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Walk visits every regular file under the root, skipping reserved
	// (dot-prefixed) and ignored entries.
	Walk(fn WalkFunc) error

	// Stat returns file info for a path. Missing paths yield an error
	// satisfying errors.Is(err, fs.ErrNotExist).
	Stat(relativePath string) (fs.FileInfo, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(relativePath string) error

	// WriteFile atomically writes r to relativePath. The write fails with
	// ErrPayloadTooLarge once more than limit bytes are read (limit <= 0 disables the check).
	// Returns the number of bytes written.
	WriteFile(relativePath string, r io.Reader, limit int64) (int64, error)

	// Open opens a stored file for reading.
	Open(relativePath string) (File, error)

	// Rename moves a file, replacing nothing: the destination must not exist.
	Rename(oldPath, newPath string) error

	// Remove deletes a single file.
	Remove(relativePath string) error

	// RemoveAll deletes a directory tree.
	RemoveAll(relativePath string) error

	// ListDirectories returns the sorted names of immediate, non-reserved subdirectories.
	ListDirectories(relativePath string) ([]string, error)

	// DiskUsage reports used and available bytes on the volume holding the root.
	DiskUsage() (used uint64, available uint64, err error)
}
