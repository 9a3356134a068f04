package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"howett.net/plist"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// Info.plist keys.
const (
	infoDeviceName     = "Device Name"
	infoDisplayName    = "Display Name"
	infoProductType    = "Product Type"
	infoProductVersion = "Product Version"
	infoSerialNumber   = "Serial Number"
	infoIMEI           = "IMEI"
	infoPhoneNumber    = "Phone Number"
	infoLastBackupDate = "Last Backup Date"
	infoUniqueID       = "Unique Identifier"

	manifestIsEncrypted = "IsEncrypted"
)

func readPlist(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	var dict map[string]any
	if _, err := plist.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ibex.ErrDecodeFailure, filepath.Base(path), err)
	}
	return dict, nil
}

// ReadDevice parses the archive's Info.plist. On error it still returns a
// Device with every field defaulted, so the result is always displayable.
func ReadDevice(root string) (ibex.Device, error) {
	d := ibex.Device{
		Name:        ibex.Unknown,
		DisplayName: ibex.Unknown,
		Model:       ibex.Unknown,
		OSVersion:   ibex.Unknown,
		Serial:      ibex.Unknown,
		IMEI:        ibex.Unknown,
		PhoneNumber: ibex.Unknown,
		Identifier:  filepath.Base(root),
	}

	info, err := readPlist(filepath.Join(root, InfoPlist))
	if err != nil {
		return d, err
	}

	str := func(key string, dst *string) {
		if s, ok := info[key].(string); ok && s != "" {
			*dst = s
		}
	}
	str(infoDeviceName, &d.Name)
	d.DisplayName = d.Name
	str(infoDisplayName, &d.DisplayName)
	str(infoProductType, &d.Model)
	str(infoProductVersion, &d.OSVersion)
	str(infoSerialNumber, &d.Serial)
	str(infoIMEI, &d.IMEI)
	str(infoPhoneNumber, &d.PhoneNumber)
	str(infoUniqueID, &d.Identifier)

	if t, ok := info[infoLastBackupDate].(time.Time); ok {
		d.LastBackup = t.UTC()
	}
	return d, nil
}

// IsEncrypted reports whether Manifest.plist flags the archive as encrypted.
// A missing Manifest.plist means unencrypted.
func IsEncrypted(root string) (bool, error) {
	path := filepath.Join(root, ManifestPlist)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	manifest, err := readPlist(path)
	if err != nil {
		return false, err
	}
	encrypted, _ := manifest[manifestIsEncrypted].(bool)
	return encrypted, nil
}
