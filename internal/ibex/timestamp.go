package ibex

import (
	"math"
	"time"
)

// PlatformEpochOffset is the number of seconds between the Unix epoch and the
// platform epoch, 2001-01-01T00:00:00Z.
const PlatformEpochOffset = 978307200

// nanosecondThreshold separates second-based from nanosecond-based message
// timestamps. Values above it are read as nanoseconds. This is a heuristic
// inherited from observed data: a genuine second count above 1e12 (year ~33700)
// would be misread.
const nanosecondThreshold = 1e12

// PlatformEpoch is the reference instant used by the device's native stores.
var PlatformEpoch = time.Unix(PlatformEpochOffset, 0).UTC()

// FromUnixSeconds converts fractional Unix seconds to a UTC time.
// Zero, NaN and infinite values yield the zero time ("no timestamp").
func FromUnixSeconds(v float64) time.Time {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// FromPlatformSeconds converts fractional seconds since the platform epoch to
// a UTC time. Zero means "no timestamp", never the epoch itself.
func FromPlatformSeconds(v float64) time.Time {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}
	}
	return FromUnixSeconds(v + PlatformEpochOffset)
}

// FromPlatformMessageTime converts a message store timestamp, which newer
// stores record in nanoseconds and older ones in seconds, both since the
// platform epoch.
func FromPlatformMessageTime(v float64) time.Time {
	if v > nanosecondThreshold {
		v = v / 1e9
	}
	return FromPlatformSeconds(v)
}

// Message dates before the first phone release or after plausibleUntil are
// almost certainly a misread unit.
var (
	plausibleFrom  = time.Date(2007, 1, 1, 0, 0, 0, 0, time.UTC)
	plausibleUntil = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// IsPlausibleMessageTime reports whether t lies in the range a message store
// can genuinely hold. The zero time counts as plausible.
func IsPlausibleMessageTime(t time.Time) bool {
	return t.IsZero() || (!t.Before(plausibleFrom) && t.Before(plausibleUntil))
}

// IsNanosecondMessageTime reports whether FromPlatformMessageTime will treat v
// as nanoseconds.
func IsNanosecondMessageTime(v float64) bool {
	return v > nanosecondThreshold
}
