package slogutil

import (
	"io"
	"log/slog"
	"os"

	"remap/internal/config"
	"remap/internal/paths"
)

// LoggerFactory builds the CLI logger: stderr at the CLI verbosity level, plus the
// optional <root>/.remap/logs/remap.log file at the configured level.
type LoggerFactory struct {
	root     string
	config   *config.Config
	cliLevel *slog.Level
	stderr   io.Writer
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory. cliLevel is nil when no -v/--quiet
// flag was given.
func NewLoggerFactory(root string, cfg *config.Config, cliLevel *slog.Level) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		root:     root,
		config:   cfg,
		cliLevel: cliLevel,
		stderr:   os.Stderr,
	}
}

// CLILogger returns the logger used by every command.
// Precedence for the stderr level: CLI flag > config logging.level.
func (f *LoggerFactory) CLILogger() *slog.Logger {
	level := LevelFromString(f.config.Logging.Level)
	if f.cliLevel != nil {
		level = *f.cliLevel
	}
	console := NewLineHandler(f.stderr, &slog.HandlerOptions{Level: level})

	if !f.config.Logging.File || f.root == "" {
		return slog.New(console)
	}

	if _, err := paths.EnsureLogsDir(f.root); err != nil {
		return slog.New(console)
	}
	fileLogger, file, err := NewFileLogger(paths.GetLogPath(f.root), LevelFromString(f.config.Logging.Level))
	if err != nil {
		return slog.New(console)
	}
	f.closers = append(f.closers, file)
	return slog.New(NewTeeHandler(console, fileLogger.Handler()))
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
