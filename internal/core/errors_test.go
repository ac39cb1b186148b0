package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	t.Run("ErrorMessages", func(t *testing.T) {
		tests := []struct {
			err     error
			message string
		}{
			{ErrConnect, "vdecapture: cannot connect to link"},
			{ErrFormatMismatch, "vdecapture: capture file header mismatch"},
			{ErrConfigInvalid, "vdecapture: invalid configuration"},
			{ErrWrite, "vdecapture: write to capture file failed"},
			{ErrSink, "vdecapture: capture sink error"},
			{ErrLimitReached, "vdecapture: capture limit reached"},
			{ErrReceiveEnded, "vdecapture: link closed"},
			{ErrTerminated, "vdecapture: capture terminated"},
		}

		for _, tt := range tests {
			if tt.err.Error() != tt.message {
				t.Errorf("expected error message %q, got %q", tt.message, tt.err.Error())
			}
		}
	})

	t.Run("ErrorWrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("out.pcap: %w", ErrFormatMismatch)
		if !errors.Is(wrapped, ErrFormatMismatch) {
			t.Error("errors.Is failed for wrapped error")
		}
		if errors.Is(wrapped, ErrConnect) {
			t.Error("wrapped ErrFormatMismatch must not match ErrConnect")
		}

		twice := fmt.Errorf("%w: reopen out.pcap: %w", ErrSink, wrapped)
		if !errors.Is(twice, ErrSink) || !errors.Is(twice, ErrFormatMismatch) {
			t.Error("errors.Is failed for doubly wrapped error")
		}
	})
}
