// Package log provides the process logger: logrus behind a small interface,
// writing to stderr and optionally to a rotated file.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger
	output *MultiWriter
)

func init() {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&formatter{pattern: DefaultPattern, time: DefaultTime})
	logger = &logrusAdapter{entry: logrus.NewEntry(l)}
}

// GetLogger returns the process logger. It is usable before Init, logging
// warnings and errors to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the process logger according to cfg. Log lines always go to
// stderr: stdout may be carrying capture data.
func Init(cfg LoggerConfig) error {
	l, w, err := build(cfg, os.Stderr)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := output
	logger = &logrusAdapter{entry: logrus.NewEntry(l)}
	output = w
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close releases file appenders opened by Init.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if output == nil {
		return nil
	}
	err := output.Close()
	output = nil
	return err
}

func build(cfg LoggerConfig, console io.Writer) (*logrus.Logger, *MultiWriter, error) {
	level := logrus.WarnLevel
	if cfg.Level != "" {
		var err error
		level, err = logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	layout := cfg.Time
	if layout == "" {
		layout = DefaultTime
	}

	w := NewMultiWriter().Add(console)
	if cfg.File.Filename != "" {
		fa, err := newFileAppender(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		w.Add(fa)
	}

	l := logrus.New()
	l.SetFormatter(&formatter{pattern: pattern, time: layout})
	l.SetLevel(level)
	l.SetReportCaller(cfg.Caller)
	l.SetOutput(w)
	return l, w, nil
}
