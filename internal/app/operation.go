package app

import (
	"context"
	"errors"
	"time"
)

// Operation status values.
const (
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Operation records one CLI command run: what was asked, when it ran and how
// it ended. Its ID tags every log line written during the run.
type Operation struct {
	ID         string
	Operation  string
	Parameters string
	Status     string
	Started    time.Time
	Finished   time.Time
}

// NewOperation creates a running operation.
func NewOperation(id, operation, parameters string, started time.Time) *Operation {
	return &Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     StatusRunning,
		Started:    started,
	}
}

// Finish sets the final status from err. Later calls are ignored.
func (op *Operation) Finish(err error, at time.Time) {
	if op.Done() {
		return
	}
	switch {
	case err == nil:
		op.Status = StatusSuccess
	case errors.Is(err, context.Canceled):
		op.Status = StatusCancelled
	default:
		op.Status = StatusError
	}
	op.Finished = at
}

// Done returns true once Finish has been called.
func (op *Operation) Done() bool {
	return op.Status != StatusRunning
}

// Duration is the wall time of a finished operation.
func (op *Operation) Duration() time.Duration {
	if !op.Done() {
		return 0
	}
	return op.Finished.Sub(op.Started)
}
