package encryption

import (
	"bytes"
	"fmt"
	"io"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// testHeader marks data sealed by TestEncryptor.
var testHeader = []byte("IBEXENC\x00")

// TestEncryptor is a deterministic stand-in for tests: it prefixes a fixed
// header and strips it again. No cryptography is involved.
type TestEncryptor struct {
	setupCalled bool
}

var _ ibex.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) EncryptWriter(w io.Writer) (io.WriteCloser, error) {
	if _, err := w.Write(testHeader); err != nil {
		return nil, fmt.Errorf("writing test header: %w", err)
	}
	return nopCloser{w}, nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	enc, err := e.EncryptWriter(w)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return enc.Close()
}

func (e *TestEncryptor) Unlock(passphrase string) (ibex.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ ibex.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
