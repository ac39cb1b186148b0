package log

import (
	"io"
	"os"
)

// MultiWriter fans every log line out to all appenders. A failing appender
// does not stop the others.
type MultiWriter struct {
	writers []io.Writer
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func (m *MultiWriter) Len() int {
	return len(m.writers)
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

// Close closes every appender that owns a resource. The standard streams are
// left open.
func (m *MultiWriter) Close() error {
	var err error
	for _, w := range m.writers {
		if w == os.Stderr || w == os.Stdout {
			continue
		}
		if c, ok := w.(io.Closer); ok {
			if e := c.Close(); e != nil {
				err = e
			}
		}
	}
	return err
}
