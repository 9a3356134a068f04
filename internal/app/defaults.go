package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/drsanjula/iOSBackupExplorer/internal/archive"
	"github.com/drsanjula/iOSBackupExplorer/internal/config"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - IBEX_CONFIG_PATH: config file location (default: ~/.config/ibex.toml)
//   - IBEX_HOME: base directory for ibex data (default: ~/.local/share/ibex)
//   - IBEX_BACKUP_DIR: where archives are looked for (default: the sync software's folder)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	backupDir, err := getBackupDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"backup_dir":  backupDir,
	}, nil
}

// getConfigPath returns the config file path, checking IBEX_CONFIG_PATH env var first,
// then falling back to the default ~/.config/ibex.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("IBEX_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ibex.toml"), nil
}

// getBaseDir returns the base directory for ibex data, checking IBEX_HOME env var first,
// then falling back to the XDG default ~/.local/share/ibex.
func getBaseDir() (string, error) {
	if path := os.Getenv("IBEX_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "ibex"), nil
}

func getBackupDir() (string, error) {
	if path := os.Getenv("IBEX_BACKUP_DIR"); path != "" {
		return path, nil
	}
	return archive.DefaultBackupDir()
}

// DefaultConfig builds the configuration used when no config file exists.
func DefaultConfig(defaults map[string]string) *config.Config {
	return config.NewConfig(defaults["base_dir"], defaults["backup_dir"])
}
