package mirror

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"filehost/internal/encryption"
	"filehost/internal/filehost"
)

func TestEncryptedMirror_Put(t *testing.T) {
	inner := NewMemoryMirror()
	enc := encryption.HeaderEncryptor{}
	m := NewEncryptedMirror(inner, enc)

	if got, want := m.Name(), "memory+encrypted"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}

	plaintext := strings.Repeat("secret payload ", 1000)
	if err := m.Put(context.Background(), "docs/a.txt", strings.NewReader(plaintext), int64(len(plaintext))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, ok := inner.Get("docs/a.txt"); ok {
		t.Error("plaintext path should not be written")
	}
	ciphertext, ok := inner.Get("docs/a.txt" + EncryptedSuffix)
	if !ok {
		t.Fatal("encrypted copy not found")
	}
	if bytes.Equal(ciphertext, []byte(plaintext)) {
		t.Error("mirrored copy is not encrypted")
	}

	dec, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var out bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(ciphertext), &out); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if out.String() != plaintext {
		t.Error("decrypted content does not match")
	}
}

type failingMirror struct{ err error }

func (f failingMirror) Name() string { return "failing" }

func (f failingMirror) Put(context.Context, string, io.Reader, int64) error { return f.err }

func TestEncryptedMirror_InnerFailure(t *testing.T) {
	want := errors.New("sink unavailable")
	m := NewEncryptedMirror(failingMirror{err: want}, encryption.HeaderEncryptor{})

	// The inner mirror never reads; Put must still return instead of blocking.
	err := m.Put(context.Background(), "a.txt", strings.NewReader(strings.Repeat("x", 1<<20)), 1<<20)
	if !errors.Is(err, want) {
		t.Errorf("Put() error = %v, want %v", err, want)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk read failed") }

func TestEncryptedMirror_SourceFailure(t *testing.T) {
	m := NewEncryptedMirror(NewMemoryMirror(), encryption.HeaderEncryptor{})

	if err := m.Put(context.Background(), "a.txt", errReader{}, 10); err == nil {
		t.Error("Put() expected error when the source fails, got nil")
	}
}

// Compile-time check that failingMirror implements filehost.Mirror
var _ filehost.Mirror = failingMirror{}
