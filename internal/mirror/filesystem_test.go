package mirror

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestNewFilesystemMirror(t *testing.T) {
	root := filepath.Join(t.TempDir(), "mirror")

	m, err := NewFilesystemMirror(root)
	if err != nil {
		t.Fatalf("NewFilesystemMirror() error = %v", err)
	}
	if m.Name() != "filesystem" {
		t.Errorf("Name() = %q, want %q", m.Name(), "filesystem")
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("mirror root not created: %v", err)
	}

	if err := m.Put(context.Background(), "docs/report-0123456789ab.pdf", strings.NewReader("pdf"), 3); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "docs", "report-0123456789ab.pdf"))
	if err != nil {
		t.Fatalf("reading mirrored file: %v", err)
	}
	if string(data) != "pdf" {
		t.Errorf("content = %q, want %q", data, "pdf")
	}
}

func TestFilesystemMirror_Put(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		data    string
		size    int64
		wantErr bool
	}{
		{name: "root file", path: "a.txt", data: "hello world", size: 11},
		{name: "nested directories", path: "x/y/z/b.txt", data: "nested", size: 6},
		{name: "unknown size", path: "c.txt.age", data: "cipher", size: -1},
		{name: "size mismatch", path: "d.txt", data: "hello", size: 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			m := NewFilesystemMirrorFs(fsys)

			err := m.Put(context.Background(), tt.path, strings.NewReader(tt.data), tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}

			exists, _ := afero.Exists(fsys, "/"+tt.path)
			if tt.wantErr {
				if exists {
					t.Errorf("file %q exists after failed Put", tt.path)
				}
			} else {
				data, err := afero.ReadFile(fsys, "/"+tt.path)
				if err != nil {
					t.Fatalf("ReadFile() error = %v", err)
				}
				if string(data) != tt.data {
					t.Errorf("content = %q, want %q", data, tt.data)
				}
			}

			// No temp files may be left behind either way.
			afero.Walk(fsys, "/", func(p string, info os.FileInfo, err error) error {
				if err == nil && strings.HasPrefix(info.Name(), ".tmp-") {
					t.Errorf("temp file left behind: %s", p)
				}
				return nil
			})
		})
	}
}

func TestFilesystemMirror_PutOverwrites(t *testing.T) {
	fsys := afero.NewMemMapFs()
	m := NewFilesystemMirrorFs(fsys)
	ctx := context.Background()

	if err := m.Put(ctx, "a.txt", strings.NewReader("first"), 5); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	if err := m.Put(ctx, "a.txt", strings.NewReader("second"), 6); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	data, _ := afero.ReadFile(fsys, "/a.txt")
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}
}

func TestFilesystemMirror_PutCanceled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	m := NewFilesystemMirrorFs(fsys)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Put(ctx, "a.txt", strings.NewReader("data"), 4); err == nil {
		t.Fatal("Put() expected error for canceled context, got nil")
	}
	if exists, _ := afero.Exists(fsys, "/a.txt"); exists {
		t.Error("file written despite canceled context")
	}
}
