package sink

import (
	"fmt"
	"io"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/encryption"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// EncryptedSink seals every export with an Encryptor before handing it to
// the wrapped sink. Names gain the ".age" suffix.
type EncryptedSink struct {
	inner ibex.Sink
	enc   ibex.Encryptor
}

var (
	_ ibex.Sink          = (*EncryptedSink)(nil)
	_ ibex.ModTimeSetter = (*EncryptedSink)(nil)
)

// NewEncryptedSink wraps inner.
func NewEncryptedSink(inner ibex.Sink, enc ibex.Encryptor) *EncryptedSink {
	return &EncryptedSink{inner: inner, enc: enc}
}

func (s *EncryptedSink) Location() string {
	return s.inner.Location() + " (encrypted)"
}

func (s *EncryptedSink) Create(name string) (io.WriteCloser, error) {
	w, err := s.inner.Create(name + encryption.Suffix)
	if err != nil {
		return nil, err
	}
	sealed, err := s.enc.EncryptWriter(w)
	if err != nil {
		abortOrClose(w)
		return nil, fmt.Errorf("sealing %s: %w", name, err)
	}
	return &sealedFile{sealed: sealed, inner: w}, nil
}

// SetModTime forwards to the wrapped sink when it supports it.
func (s *EncryptedSink) SetModTime(name string, t time.Time) error {
	if m, ok := s.inner.(ibex.ModTimeSetter); ok {
		return m.SetModTime(name+encryption.Suffix, t)
	}
	return nil
}

type sealedFile struct {
	sealed io.WriteCloser
	inner  io.WriteCloser
}

func (f *sealedFile) Write(p []byte) (int, error) { return f.sealed.Write(p) }

var _ ibex.Aborter = (*sealedFile)(nil)

// Abort drops the ciphertext written so far without sealing it.
func (f *sealedFile) Abort() error {
	return abortOrClose(f.inner)
}

func (f *sealedFile) Close() error {
	if err := f.sealed.Close(); err != nil {
		abortOrClose(f.inner)
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return f.inner.Close()
}

func abortOrClose(w io.WriteCloser) error {
	if a, ok := w.(ibex.Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}
