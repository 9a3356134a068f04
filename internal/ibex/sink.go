package ibex

import (
	"io"
	"time"
)

// Sink is an export destination. Exports name their outputs relative to the
// sink; the sink decides where they land.
type Sink interface {
	// Create opens name for writing. The content is committed on Close;
	// a failed Close means the item was not exported. Writers that also
	// implement Aborter can be abandoned without committing.
	Create(name string) (io.WriteCloser, error)

	// Location describes the destination for messages.
	Location() string
}

// Aborter is implemented by writers that can discard an unfinished file
// instead of committing it. After Abort the name holds no new content.
type Aborter interface {
	Abort() error
}

// ModTimeSetter is implemented by sinks that can carry a payload's
// modification time onto the exported copy.
type ModTimeSetter interface {
	SetModTime(name string, t time.Time) error
}

// Encryptor seals exported data. Encryption uses the public key only;
// decryption requires a passphrase to unlock the private key.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext and
	// encrypts the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// EncryptWriter returns a writer whose input is encrypted into w.
	// The returned writer must be closed to flush the final chunk.
	EncryptWriter(w io.Writer) (io.WriteCloser, error)

	// Unlock decrypts the private key and returns a DecryptionContext.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
