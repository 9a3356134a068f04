package ibex

import "errors"

var (
	// ErrNotABackup means the folder is missing its manifest store or device info.
	ErrNotABackup = errors.New("not a backup archive")

	// ErrEncrypted means the archive is flagged encrypted. Encrypted archives are not supported.
	ErrEncrypted = errors.New("backup archive is encrypted")

	// ErrStoreUnavailable means a domain database could not be opened or queried.
	ErrStoreUnavailable = errors.New("data store unavailable")

	// ErrSchemaMismatch means a query referenced a table or column the store does not have.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrDecodeFailure means a metadata blob or compressed body could not be decoded.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrExportIO means a destination write failed.
	ErrExportIO = errors.New("export write failed")

	// ErrNothingToExport means the source collection was empty.
	ErrNothingToExport = errors.New("nothing to export")
)
