package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filehost/internal/filehost"
)

// headerMagic marks data "encrypted" by HeaderEncryptor.
var headerMagic = []byte("FHENC\x00\x01\x00")

// HeaderEncryptor is a reversible stand-in for AgeEncryptor that only
// prepends a fixed header. It needs no keys, so mirrors can be exercised
// with encryption enabled but without key material.
type HeaderEncryptor struct{}

var _ filehost.Encryptor = HeaderEncryptor{}

func (HeaderEncryptor) Setup(string) error { return nil }

func (HeaderEncryptor) IsConfigured() bool { return true }

func (HeaderEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(headerMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (HeaderEncryptor) Unlock(string) (filehost.Decrypter, error) {
	return headerDecrypter{}, nil
}

type headerDecrypter struct{}

func (headerDecrypter) Decrypt(r io.Reader, w io.Writer) error {
	got := make([]byte, len(headerMagic))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(got, headerMagic) {
		return errors.New("missing encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
