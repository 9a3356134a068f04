package ibex

import "time"

// Unknown is the placeholder for device fields the archive does not record.
const Unknown = "Unknown"

// Device holds the device metadata recorded in an archive's Info.plist.
// String fields are never empty; missing values are Unknown.
type Device struct {
	Name        string
	DisplayName string
	Model       string
	OSVersion   string
	Serial      string
	IMEI        string
	PhoneNumber string
	Identifier  string
	LastBackup  time.Time // zero when absent
}

// Label returns the device name followed by the backup date when known.
func (d Device) Label() string {
	if d.LastBackup.IsZero() {
		return d.Name
	}
	return d.Name + " (" + d.LastBackup.Format("2006-01-02") + ")"
}
