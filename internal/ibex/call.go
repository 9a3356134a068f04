package ibex

import (
	"fmt"
	"time"
)

// Call type codes recorded by the call history stores.
const (
	CallIncoming  = 1
	CallOutgoing  = 2
	CallMissed    = 3
	CallCancelled = 4
	CallBlocked   = 5
)

var callTypeNames = map[int64]string{
	CallIncoming:  "Incoming",
	CallOutgoing:  "Outgoing",
	CallMissed:    "Missed",
	CallCancelled: "Cancelled",
	CallBlocked:   "Blocked",
}

// CallRecord is one entry of the call log.
type CallRecord struct {
	ID       int64
	Address  string
	Date     time.Time // zero when absent
	Duration int64     // seconds
	Type     int64
	Answered bool
}

// PhoneNumber returns the address or Unknown.
func (c *CallRecord) PhoneNumber() string {
	if c.Address == "" {
		return Unknown
	}
	return c.Address
}

// TypeName returns the label for the call type code.
func (c *CallRecord) TypeName() string {
	if name, ok := callTypeNames[c.Type]; ok {
		return name
	}
	return Unknown
}

// FormattedDuration renders the duration as m:ss, or h:mm:ss from one hour up.
func (c *CallRecord) FormattedDuration() string {
	return FormatClock(c.Duration)
}

// FormatClock renders seconds as m:ss or h:mm:ss.
func FormatClock(seconds int64) string {
	if seconds <= 0 {
		return "0:00"
	}
	minutes := seconds / 60
	secs := seconds % 60
	if minutes >= 60 {
		return fmt.Sprintf("%d:%02d:%02d", minutes/60, minutes%60, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
