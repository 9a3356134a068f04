package export

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

const callTime = "2006-01-02 15:04"

var callHeader = []string{"Date", "Phone Number", "Type", "Duration", "Answered"}

// WriteCallsCSV writes the call log as CSV with a header row.
func WriteCallsCSV(w io.Writer, calls []ibex.CallRecord, opts ...Option) error {
	return buildOptions(opts).writeCalls(w, calls)
}

func (o options) writeCalls(w io.Writer, calls []ibex.CallRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(callHeader); err != nil {
		return err
	}
	for _, c := range calls {
		answered := "No"
		if c.Answered {
			answered = "Yes"
		}
		row := []string{
			o.format(c.Date, callTime),
			c.PhoneNumber(),
			c.TypeName(),
			c.FormattedDuration(),
			answered,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Calls writes the call log into one CSV file called name.
func Calls(ctx context.Context, calls []ibex.CallRecord, s ibex.Sink, name string, opts ...Option) (Result, error) {
	if len(calls) == 0 {
		return Result{}, ibex.ErrNothingToExport
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	o := buildOptions(opts)
	err := writeFile(s, name, func(w io.Writer) error { return o.writeCalls(w, calls) })
	if err != nil {
		o.logger.Error("call history export failed", "name", name, "error", err)
		return Result{Failed: len(calls)}, err
	}
	return Result{Exported: len(calls)}, nil
}
