package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// Summary describes an archive found by Discover without opening it.
type Summary struct {
	Path      string
	Device    ibex.Device
	Encrypted bool
}

// DefaultBackupDir returns the directory where the desktop sync software
// stores device backups on this platform.
func DefaultBackupDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Apple Computer", "MobileSync", "Backup"), nil
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, "Library", "Application Support", "MobileSync", "Backup"), nil
}

// Discover lists the archives directly below dir, newest backup first.
// Folders that are not archives are skipped. A missing dir yields no archives.
func Discover(dir string) ([]Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var found []Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		root := filepath.Join(dir, entry.Name())
		if Validate(root) != nil {
			continue
		}
		device, _ := ReadDevice(root)
		encrypted, _ := IsEncrypted(root)
		found = append(found, Summary{Path: root, Device: device, Encrypted: encrypted})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Device.LastBackup.After(found[j].Device.LastBackup)
	})
	return found, nil
}
