// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// Startup errors, fatal (exit 1)
	ErrConnect        = errors.New("vdecapture: cannot connect to link")
	ErrFormatMismatch = errors.New("vdecapture: capture file header mismatch")
	ErrConfigInvalid  = errors.New("vdecapture: invalid configuration")

	// Sink errors, ordinary end of capture once the loop is running
	ErrWrite = errors.New("vdecapture: write to capture file failed")
	ErrSink  = errors.New("vdecapture: capture sink error")

	// End-of-capture conditions, not faults
	ErrLimitReached = errors.New("vdecapture: capture limit reached")
	ErrReceiveEnded = errors.New("vdecapture: link closed")
	ErrTerminated   = errors.New("vdecapture: capture terminated")
)
