package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"

	"filehost/internal/filehost"
)

// EncryptedSuffix is appended to the path of every encrypted copy.
const EncryptedSuffix = ".age"

// EncryptedMirror encrypts content before handing it to the wrapped mirror.
// Only the public key is needed, so the server never holds the private key.
type EncryptedMirror struct {
	inner     filehost.Mirror
	encryptor filehost.Encryptor
}

// NewEncryptedMirror wraps inner so that every Put is encrypted.
func NewEncryptedMirror(inner filehost.Mirror, encryptor filehost.Encryptor) *EncryptedMirror {
	return &EncryptedMirror{inner: inner, encryptor: encryptor}
}

func (m *EncryptedMirror) Name() string { return m.inner.Name() + "+encrypted" }

// Put streams ciphertext to the inner mirror. The ciphertext length is not
// known up front, so the inner mirror receives size -1.
func (m *EncryptedMirror) Put(ctx context.Context, relativePath string, r io.Reader, size int64) error {
	pr, pw := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := m.encryptor.Encrypt(r, pw)
		pw.CloseWithError(err)
		done <- err
	}()

	putErr := m.inner.Put(ctx, relativePath+EncryptedSuffix, pr, -1)
	// Unblock the encrypting goroutine if the inner mirror stopped reading early.
	pr.CloseWithError(errors.New("mirror upload finished"))
	encErr := <-done

	if encErr != nil && putErr == nil {
		return fmt.Errorf("encrypting %s: %w", relativePath, encErr)
	}
	if putErr != nil {
		return putErr
	}
	return nil
}

// Compile-time check that EncryptedMirror implements filehost.Mirror
var _ filehost.Mirror = (*EncryptedMirror)(nil)
