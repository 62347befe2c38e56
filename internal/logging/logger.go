// Package logging builds the process-wide and per-connection slog loggers
// used across the transport core.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileRotation bounds the size and retention of the optional log file
// NewLogger writes to. Zero fields fall back to lumberjack.Logger's own
// defaults (rotate at 100 MB, no age limit, no backup limit).
type FileRotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger builds a slog.Logger for the given level, format ("json" or
// "text", default "json") and optional file path. When filePath is not
// empty, log records go to stdout and a rotating file via io.MultiWriter;
// the returned io.Closer must be closed on shutdown to flush and close the
// file. When filePath is empty the returned Closer is a no-op. A long-lived
// server process writing every accepted connection's summary to filePath
// would otherwise grow that file without bound, so rotation (not a plain
// append-only os.File) is the default once a path is given.
func NewLogger(level, format, filePath string, rotation FileRotation) (*slog.Logger, io.Closer) {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	var w io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)

	if filePath != "" {
		lj := &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
			LocalTime:  true,
		}
		w = io.MultiWriter(os.Stdout, lj)
		closer = lj
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), closer
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
