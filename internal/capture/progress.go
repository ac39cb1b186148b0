package capture

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Progress prints the running packet count on an interactive terminal.
type Progress struct {
	w      io.Writer
	active bool
}

// NewProgress writes to f when f is a terminal and quiet is unset; otherwise
// the returned Progress prints nothing.
func NewProgress(f *os.File, quiet bool) *Progress {
	return &Progress{
		w:      f,
		active: !quiet && term.IsTerminal(int(f.Fd())),
	}
}

func (p *Progress) Active() bool {
	return p != nil && p.active
}

// Update overwrites the counter in place.
func (p *Progress) Update(packets uint64) {
	if !p.Active() {
		return
	}
	fmt.Fprintf(p.w, "\r%d", packets)
}

// Finish ends the counter line.
func (p *Progress) Finish() {
	if !p.Active() {
		return
	}
	fmt.Fprintln(p.w)
}
