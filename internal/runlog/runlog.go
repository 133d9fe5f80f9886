// Package runlog opens the per-run log file.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options controls where a run logs.
type Options struct {
	Dir     string
	RunID   string
	Start   time.Time
	Verbose bool      // also log to Stderr in console format
	Stderr  io.Writer // defaults to os.Stderr
}

// Log is a run's logger plus the file behind it.
type Log struct {
	zerolog.Logger
	Path string
	file *os.File
}

// FileName is the log file name for a run started at start.
func FileName(start time.Time) string {
	return fmt.Sprintf("serial_log_%d.log", start.Unix())
}

// Open creates Dir if needed and starts logging JSON lines to
// Dir/serial_log_<unix>.log.
func Open(opts Options) (*Log, error) {
	if opts.Dir == "" {
		opts.Dir = "./logs"
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(opts.Dir, FileName(opts.Start))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var w io.Writer = f
	if opts.Verbose {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.TimeOnly})
	}

	ctx := zerolog.New(w).With().Timestamp()
	if opts.RunID != "" {
		ctx = ctx.Str("run_id", opts.RunID)
	}
	return &Log{Logger: ctx.Logger(), Path: path, file: f}, nil
}

func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
