// Package logging builds the arbor loggers used by mmlocalizer.
//
// Loggers returned here carry private writers, so they never write to
// arbor's global writer registry. Each writer keeps its own level: the
// console follows the configured level while a session log file always
// records debug output.
package logging

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

const timeFormat = "15:04:05"

// discardWriter drops every event.
type discardWriter struct{}

func (d discardWriter) WithLevel(log.Level) writers.IWriter { return d }
func (discardWriter) Write(p []byte) (int, error)         { return len(p), nil }
func (discardWriter) GetFilePath() string                 { return "" }
func (discardWriter) Close() error                        { return nil }

// Discard returns a logger that writes nothing.
func Discard() arbor.ILogger {
	return arbor.NewLogger().WithWriters([]writers.IWriter{discardWriter{}})
}

// Options selects the writers of a CLI logger.
type Options struct {
	// Level applies to the console writer: trace, debug, info, warn or
	// error.
	Level string
	// File, when set, adds a debug-level file writer.
	File string
}

// Logger is a logger together with the writers it owns.
type Logger struct {
	arbor.ILogger
	writers []writers.IWriter
	file    string
}

// New builds a console logger and, with opts.File, a session log file.
func New(opts Options) (*Logger, error) {
	lvl, err := arbor.ParseLevelString(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	list := []writers.IWriter{
		writers.ConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: timeFormat,
		}).WithLevel(lvl),
	}
	if opts.File != "" {
		list = append(list, writers.FileWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeFile,
			FileName:   opts.File,
			TimeFormat: timeFormat,
			MaxSize:    20 * 1024 * 1024,
			MaxBackups: 10,
		}).WithLevel(log.DebugLevel))
	}

	return &Logger{
		ILogger: arbor.NewLogger().WithWriters(list),
		writers: list,
		file:    opts.File,
	}, nil
}

// File returns the session log path, or "".
func (l *Logger) File() string {
	return l.file
}

// Close flushes and closes the owned writers.
func (l *Logger) Close() error {
	var first error
	for _, w := range l.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SessionFile returns the log file for a session started at t, under
// <dataDir>/logs.
func SessionFile(dataDir string, t time.Time) string {
	return filepath.Join(dataDir, "logs", "session-"+t.Format("2006-01-02_15-04-05")+".log")
}
