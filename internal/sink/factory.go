package sink

import (
	"context"
	"fmt"

	"github.com/drsanjula/iOSBackupExplorer/internal/config"
	"github.com/drsanjula/iOSBackupExplorer/internal/encryption"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// NewSinkFromConfig creates the destination for an export. For the
// filesystem type dest is a directory; for s3 it is appended to the key
// prefix; the memory type ignores it.
func NewSinkFromConfig(ctx context.Context, cfg config.SinkConfig, dest string) (ibex.Sink, error) {
	switch cfg.Type {
	case "filesystem", "":
		if dest == "" {
			return nil, fmt.Errorf("filesystem sink requires a destination directory")
		}
		return NewFileSystemSink(dest), nil
	case "memory":
		return NewMemorySink(dest), nil
	case "s3":
		return NewS3SinkFromConfig(ctx, cfg, dest)
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}

// FromExportConfig creates the configured sink and wraps it for encryption
// when the export config asks for it.
func FromExportConfig(ctx context.Context, cfg config.ExportConfig, dest string) (ibex.Sink, error) {
	s, err := NewSinkFromConfig(ctx, cfg.Sink, dest)
	if err != nil {
		return nil, err
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return s, nil
	}
	if !enc.IsConfigured() {
		return nil, fmt.Errorf("export encryption is enabled but no keys exist; run 'ibex config keys'")
	}
	return NewEncryptedSink(s, enc), nil
}
