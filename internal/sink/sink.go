// Package sink manages the capture output: a regular file or the process's
// standard output, opened with a validated pcap header and reopenable in place.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"firestige.xyz/vdecapture/internal/core"
	"firestige.xyz/vdecapture/internal/log"
	"firestige.xyz/vdecapture/internal/pcapfile"
)

// StdoutPath is the output path designating standard output.
const StdoutPath = "-"

const (
	bufferSize = 64 * 1024
	fileMode   = 0o644
)

// Sink is a write target for capture records.
type Sink interface {
	io.Writer

	// Flush pushes buffered records to the underlying descriptor.
	Flush() error
	// Close flushes and releases the sink. The stdout sink is only flushed.
	Close() error
	// Fd is the descriptor watched for error conditions while capturing.
	Fd() uintptr
	// Rotatable reports whether the sink can be closed and reopened in place.
	Rotatable() bool
	// HeaderBytes is the number of global-header bytes written when the sink
	// was opened: 0 when appending to an existing capture.
	HeaderBytes() int
}

// Target describes where captures go. The zero Stdout means os.Stdout.
type Target struct {
	Path   string
	Append bool
	Stdout *os.File
}

// IsStdout reports whether the target is standard output.
func (t Target) IsStdout() bool {
	return t.Path == StdoutPath
}

// Open opens the target and makes sure it starts with a valid header.
//
// Standard output always receives a fresh header. In append mode an empty or
// missing file receives a fresh header, a nonempty one must already start with
// the canonical header or Open fails with core.ErrFormatMismatch, leaving the
// file untouched. Otherwise the file is truncated and a fresh header written.
func (t Target) Open() (Sink, error) {
	if t.IsStdout() {
		out := t.Stdout
		if out == nil {
			out = os.Stdout
		}
		s := newStdoutSink(out)
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if t.Append {
		return openAppend(t.Path)
	}
	return openTruncate(t.Path)
}

// Reopen implements rotation: a file sink is flushed, closed and opened again
// with the same settings; a stdout sink is returned unchanged.
//
// On failure the current sink has already been closed and must not be used.
// A failed close fails the reopen: the buffered records it was flushing are
// lost.
func (t Target) Reopen(current Sink) (Sink, error) {
	if current != nil && !current.Rotatable() {
		return current, nil
	}
	if current != nil {
		if err := current.Close(); err != nil {
			return nil, fmt.Errorf("%w: close %s: %w", core.ErrSink, t.Path, err)
		}
	}
	s, err := t.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: reopen %s: %w", core.ErrSink, t.Path, err)
	}
	return s, nil
}

func openTruncate(path string) (Sink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return nil, err
	}
	s := newFileSink(f)
	if err := s.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func openAppend(path string) (Sink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, fileMode)
	if err != nil {
		return nil, err
	}

	hdr, err := pcapfile.ReadHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s := newFileSink(f)
	if hdr == nil {
		if err := s.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		return s, nil
	}
	log.GetLogger().WithField("path", path).Debug("appending to existing capture")
	return s, nil
}

type bufferedSink struct {
	w           *bufio.Writer
	f           *os.File
	fd          uintptr
	headerBytes int
}

func (s *bufferedSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *bufferedSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", core.ErrSink, err)
	}
	return nil
}

func (s *bufferedSink) Fd() uintptr {
	return s.fd
}

func (s *bufferedSink) HeaderBytes() int {
	return s.headerBytes
}

func (s *bufferedSink) writeHeader() error {
	if err := pcapfile.WriteHeader(s.w); err != nil {
		return err
	}
	if err := s.Flush(); err != nil {
		return err
	}
	s.headerBytes = pcapfile.HeaderLen
	return nil
}

// fileSink owns a regular file.
type fileSink struct {
	bufferedSink
}

func newFileSink(f *os.File) *fileSink {
	return &fileSink{bufferedSink{
		w:  bufio.NewWriterSize(f, bufferSize),
		f:  f,
		fd: f.Fd(),
	}}
}

func (s *fileSink) Rotatable() bool { return true }

func (s *fileSink) Close() error {
	flushErr := s.Flush()
	closeErr := s.f.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close: %v", core.ErrSink, closeErr)
	}
	return nil
}

// stdoutSink borrows the process's standard output; it is never closed.
type stdoutSink struct {
	bufferedSink
}

func newStdoutSink(f *os.File) *stdoutSink {
	return &stdoutSink{bufferedSink{
		w:  bufio.NewWriterSize(f, bufferSize),
		f:  f,
		fd: f.Fd(),
	}}
}

func (s *stdoutSink) Rotatable() bool { return false }

func (s *stdoutSink) Close() error {
	return s.Flush()
}
