package testutil

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"filehost/internal/filehost"
	"filehost/internal/fs"
)

// NewTestFilesystem creates an in-memory upload root.
func NewTestFilesystem(t *testing.T) *fs.Manager {
	t.Helper()

	m, err := fs.NewMemManager(afero.NewMemMapFs(), nil)
	if err != nil {
		t.Fatalf("failed to create filesystem: %v", err)
	}
	return m
}

// WriteTestFile stores content at relativePath, creating parent directories.
func WriteTestFile(t *testing.T, fsmgr filehost.FilesystemManager, relativePath, content string) {
	t.Helper()

	if dir := filehost.ParentDirectory(relativePath); dir != "" {
		if err := fsmgr.MkdirAll(dir); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	if _, err := fsmgr.WriteFile(relativePath, strings.NewReader(content), 0); err != nil {
		t.Fatalf("failed to write %s: %v", relativePath, err)
	}
}

// ReadTestFile returns the content at relativePath.
func ReadTestFile(t *testing.T, fsmgr filehost.FilesystemManager, relativePath string) string {
	t.Helper()

	f, err := fsmgr.Open(relativePath)
	if err != nil {
		t.Fatalf("failed to open %s: %v", relativePath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("failed to read %s: %v", relativePath, err)
	}
	return string(data)
}

// FaultyFilesystem wraps a FilesystemManager and fails selected operations.
type FaultyFilesystem struct {
	filehost.FilesystemManager

	mu        sync.Mutex
	removeErr error
	renameErr error
	removed   []string
}

// NewFaultyFilesystem wraps inner.
func NewFaultyFilesystem(inner filehost.FilesystemManager) *FaultyFilesystem {
	return &FaultyFilesystem{FilesystemManager: inner}
}

// FailRemove makes every Remove return err.
func (f *FaultyFilesystem) FailRemove(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeErr = err
}

// FailRename makes every Rename return err.
func (f *FaultyFilesystem) FailRename(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renameErr = err
}

// Removed returns the paths passed to Remove.
func (f *FaultyFilesystem) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *FaultyFilesystem) Remove(relativePath string) error {
	f.mu.Lock()
	f.removed = append(f.removed, relativePath)
	err := f.removeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.FilesystemManager.Remove(relativePath)
}

func (f *FaultyFilesystem) Rename(oldPath, newPath string) error {
	f.mu.Lock()
	err := f.renameErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.FilesystemManager.Rename(oldPath, newPath)
}
