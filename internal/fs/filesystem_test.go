package fs

import (
	"bytes"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"filehost/internal/filehost"
)

func newOSManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "uploads")
	m, err := NewOSManager(root, nil)
	if err != nil {
		t.Fatalf("NewOSManager() error = %v", err)
	}
	return m, root
}

func TestNewOSManager(t *testing.T) {
	t.Run("creates the root", func(t *testing.T) {
		_, root := newOSManager(t)
		info, err := os.Stat(root)
		if err != nil {
			t.Fatalf("root not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("root is not a directory")
		}
	})

	t.Run("reads the ignore file from the root", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("*.part\n"), 0644); err != nil {
			t.Fatal(err)
		}
		m, err := NewOSManager(root, nil)
		if err != nil {
			t.Fatalf("NewOSManager() error = %v", err)
		}
		if !m.ignore.Match("a.part") {
			t.Error("pattern from ignore file not applied")
		}
	})
}

func TestManager_RealPath(t *testing.T) {
	m, root := newOSManager(t)

	got, err := m.RealPath("docs/2024")
	if err != nil {
		t.Fatalf("RealPath() error = %v", err)
	}
	if want := filepath.Join(root, "docs", "2024"); got != want {
		t.Errorf("RealPath(docs/2024) = %q, want %q", got, want)
	}

	if got, _ := m.RealPath(""); got != filepath.Clean(root) {
		t.Errorf("RealPath(\"\") = %q, want the root %q", got, root)
	}

	for _, bad := range []string{"../outside", "docs/../../outside", ".filehost"} {
		if _, err := m.RealPath(bad); !errors.Is(err, filehost.ErrInvalidPath) {
			t.Errorf("RealPath(%q) error = %v, want ErrInvalidPath", bad, err)
		}
	}

	mem, err := NewMemManager(afero.NewMemMapFs(), nil)
	if err != nil {
		t.Fatalf("NewMemManager() error = %v", err)
	}
	if _, err := mem.RealPath("docs"); err == nil {
		t.Error("RealPath() on an in-memory manager succeeded")
	}
}

func TestManager_WriteFile(t *testing.T) {
	t.Run("writes content atomically", func(t *testing.T) {
		m, root := newOSManager(t)

		n, err := m.WriteFile("hello.txt", strings.NewReader("hello world"), 100)
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if n != 11 {
			t.Errorf("written = %d, want 11", n)
		}
		got, err := os.ReadFile(filepath.Join(root, "hello.txt"))
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if string(got) != "hello world" {
			t.Errorf("content = %q", got)
		}

		entries, _ := os.ReadDir(root)
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".upload-") {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})

	t.Run("rejects payloads over the limit", func(t *testing.T) {
		m, root := newOSManager(t)

		_, err := m.WriteFile("big.txt", bytes.NewReader(make([]byte, 11)), 10)
		if !errors.Is(err, filehost.ErrPayloadTooLarge) {
			t.Fatalf("WriteFile() error = %v, want ErrPayloadTooLarge", err)
		}
		if _, err := os.Stat(filepath.Join(root, "big.txt")); !os.IsNotExist(err) {
			t.Error("oversize file should not exist")
		}
	})

	t.Run("accepts payloads exactly at the limit", func(t *testing.T) {
		m, _ := newOSManager(t)
		if _, err := m.WriteFile("exact.txt", bytes.NewReader(make([]byte, 10)), 10); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	})
}

func TestManager_Walk(t *testing.T) {
	m, root := newOSManager(t)
	files := map[string]string{
		"a.txt":             "a",
		"docs/b.pdf":        "b",
		"docs/deep/c.txt":   "c",
		".protected.json":   "{}",
		".hidden/d.txt":     "d",
		"docs/.upload-1234": "partial",
		"docs/skip.part":    "x",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "empty", "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	m.ignore = NewIgnoreMatcher([]string{"*.part"})

	var got []string
	err := m.Walk(func(rel string, info iofs.FileInfo) error {
		got = append(got, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	sort.Strings(got)

	want := []string{"a.txt", "docs/b.pdf", "docs/deep/c.txt"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Walk() visited %v, want %v", got, want)
	}
}

func TestManager_Rename(t *testing.T) {
	t.Run("moves between directories", func(t *testing.T) {
		m, root := newOSManager(t)
		m.WriteFile("a.txt", strings.NewReader("a"), 0)
		m.MkdirAll("archive")

		if err := m.Rename("a.txt", "archive/a.txt"); err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "archive", "a.txt")); err != nil {
			t.Errorf("destination missing: %v", err)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		m, _ := newOSManager(t)
		m.WriteFile("a.txt", strings.NewReader("a"), 0)
		m.WriteFile("b.txt", strings.NewReader("b"), 0)

		if err := m.Rename("a.txt", "b.txt"); !errors.Is(err, iofs.ErrExist) {
			t.Errorf("Rename() error = %v, want ErrExist", err)
		}
	})

	t.Run("missing source is ErrNotExist", func(t *testing.T) {
		m, _ := newOSManager(t)
		if err := m.Rename("nope.txt", "b.txt"); !errors.Is(err, iofs.ErrNotExist) {
			t.Errorf("Rename() error = %v, want ErrNotExist", err)
		}
	})
}

func TestManager_ListDirectories(t *testing.T) {
	m, err := NewMemManager(afero.NewMemMapFs(), nil)
	if err != nil {
		t.Fatalf("NewMemManager() error = %v", err)
	}
	for _, d := range []string{"zeta", "alpha", "alpha/inner", ".hidden"} {
		if err := m.MkdirAll(d); err != nil {
			t.Fatal(err)
		}
	}
	m.WriteFile("file.txt", strings.NewReader("x"), 0)

	t.Run("lists immediate subdirectories sorted", func(t *testing.T) {
		got, err := m.ListDirectories("")
		if err != nil {
			t.Fatalf("ListDirectories() error = %v", err)
		}
		if strings.Join(got, ",") != "alpha,zeta" {
			t.Errorf("ListDirectories() = %v, want [alpha zeta]", got)
		}
	})

	t.Run("lists nested directory", func(t *testing.T) {
		got, err := m.ListDirectories("alpha")
		if err != nil {
			t.Fatalf("ListDirectories() error = %v", err)
		}
		if len(got) != 1 || got[0] != "inner" {
			t.Errorf("ListDirectories() = %v, want [inner]", got)
		}
	})

	t.Run("missing directory is ErrNotExist", func(t *testing.T) {
		if _, err := m.ListDirectories("missing"); !errors.Is(err, iofs.ErrNotExist) {
			t.Errorf("ListDirectories() error = %v, want ErrNotExist", err)
		}
	})

	t.Run("file is not a directory", func(t *testing.T) {
		if _, err := m.ListDirectories("file.txt"); !errors.Is(err, iofs.ErrNotExist) {
			t.Errorf("ListDirectories() error = %v, want ErrNotExist", err)
		}
	})
}

func TestManager_RemoveAll(t *testing.T) {
	m, root := newOSManager(t)

	if err := m.RemoveAll(""); err == nil {
		t.Error("RemoveAll(\"\") should refuse to remove the root")
	}

	m.MkdirAll("docs/deep")
	m.WriteFile("docs/deep/a.txt", strings.NewReader("a"), 0)
	if err := m.RemoveAll("docs"); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "docs")); !os.IsNotExist(err) {
		t.Error("docs should be gone")
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should survive: %v", err)
	}
}

func TestManager_DiskUsage(t *testing.T) {
	m, _ := newOSManager(t)
	_, available, err := m.DiskUsage()
	if err != nil {
		t.Fatalf("DiskUsage() error = %v", err)
	}
	if available == 0 {
		t.Error("expected some available space on the test volume")
	}
}
