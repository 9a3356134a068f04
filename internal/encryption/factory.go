package encryption

import (
	"fmt"

	"github.com/drsanjula/iOSBackupExplorer/internal/config"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" (or empty) returns a nil Encryptor: exports stay in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (ibex.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
