package testutil

import (
	"filehost/internal/encryption"
	"filehost/internal/filehost"
)

// NewTestEncryptor creates a keyless encryptor for testing.
func NewTestEncryptor() filehost.Encryptor {
	return encryption.HeaderEncryptor{}
}
