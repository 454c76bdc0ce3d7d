package slogutil

import (
	"io"
	"log/slog"

	"vcshist/internal/config"
	"vcshist/internal/paths"
)

// LoggerFactory creates loggers for the CLI and for index runs.
// Level precedence: CLI flags > config > info.
type LoggerFactory struct {
	root     string
	config   *config.Config
	out      io.Writer
	cliLevel *slog.Level
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory writing console output to out.
// cliLevel is nil when no CLI override was given.
func NewLoggerFactory(root string, cfg *config.Config, out io.Writer, cliLevel *slog.Level) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		root:     root,
		config:   cfg,
		out:      out,
		cliLevel: cliLevel,
	}
}

// ConsoleLogger returns the logger used by interactive commands.
func (f *LoggerFactory) ConsoleLogger() *slog.Logger {
	if f.out == nil {
		return NewDiscardLogger()
	}
	return NewFormatLogger(f.out, f.config.Logging.Format, f.effectiveLevel())
}

// IndexLogger returns a logger that writes to the console and to a fresh
// <root>/.vcshist/logs/index.log. Earlier run logs are kept as index.log.N.
// If the log file cannot be opened the console logger is returned on its own.
func (f *LoggerFactory) IndexLogger() *slog.Logger {
	console := f.ConsoleLogger()
	if f.root == "" {
		return console
	}
	if _, err := paths.EnsureLogsDir(f.root); err != nil {
		console.Warn("Cannot create logs directory", "error", err)
		return console
	}

	// The file always records at least info so that index runs leave a trail.
	fileLevel := f.effectiveLevel()
	if fileLevel > slog.LevelInfo {
		fileLevel = slog.LevelInfo
	}
	file, err := OpenRunLog(paths.IndexLogPath(f.root), f.config.Logging.KeepRuns)
	if err != nil {
		console.Warn("Cannot open index log", "error", err)
		return console
	}
	f.closers = append(f.closers, file)

	return slog.New(NewTeeHandler(console.Handler(), NewLogger(file, fileLevel).Handler()))
}

func (f *LoggerFactory) effectiveLevel() slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelInfo
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
