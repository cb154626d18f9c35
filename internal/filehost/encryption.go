package filehost

import "io"

// Encryptor encrypts mirrored copies with a public key and unlocks the
// matching private key for offline decryption.
type Encryptor interface {
	// Setup generates the key pair. The private key is sealed with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	// It needs the public key only.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (Decrypter, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// Decrypter holds an unlocked private key in memory.
type Decrypter interface {
	Decrypt(r io.Reader, w io.Writer) error
}
