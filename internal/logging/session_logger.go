package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ConnKey identifies the peer a session log belongs to by transport and
// address, mirroring the identity transport.Server already keys its
// connection table by, instead of a single opaque label string.
type ConnKey struct {
	Network string
	Address string
}

// dir turns k into a filesystem-safe two-level path component:
// {network}/{address-with-separators-escaped}. Splitting on Network keeps
// connections dialed over distinct transports (tcp vs. a future unix-socket
// listener) from sharing one flat directory.
func (k ConnKey) dir() string {
	network := k.Network
	if network == "" {
		network = "unknown"
	}
	return filepath.Join(network, strings.NewReplacer(":", "_", "/", "_").Replace(k.Address))
}

// fanOutHandler is a slog.Handler that dispatches every record to two
// handlers. SessionLogger uses it to write simultaneously to the global
// handler and to a connection's dedicated log file.
type fanOutHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (h *fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.secondary.Enabled(ctx, level)
}

func (h *fanOutHandler) Handle(ctx context.Context, r slog.Record) error {
	// Enabled() is checked per handler so a DEBUG record isn't sent to the
	// primary handler when it only accepts INFO or above.
	if h.primary.Enabled(ctx, r.Level) {
		if err := h.primary.Handle(ctx, r); err != nil {
			return err
		}
	}
	// Write errors on the per-connection file must never block the global log.
	if h.secondary.Enabled(ctx, r.Level) {
		_ = h.secondary.Handle(ctx, r)
	}
	return nil
}

func (h *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithAttrs(attrs),
		secondary: h.secondary.WithAttrs(attrs),
	}
}

func (h *fanOutHandler) WithGroup(name string) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithGroup(name),
		secondary: h.secondary.WithGroup(name),
	}
}

// NewSessionLogger builds a logger that writes to both the base (global)
// logger and a file dedicated to one connection. The file is created at:
//
//	{sessionLogDir}/{key.Network}/{key.Address}/{connID}.log
//
// It returns the enriched logger, an io.Closer that must be closed (defer)
// when the connection ends, and the path of the created file (joined onto
// sessionLogDir as given).
//
// If sessionLogDir is empty, NewSessionLogger is a no-op and returns the
// base logger unmodified.
func NewSessionLogger(baseLogger *slog.Logger, sessionLogDir string, key ConnKey, connID string) (*slog.Logger, io.Closer, string, error) {
	if sessionLogDir == "" {
		return baseLogger, io.NopCloser(nil), "", nil
	}

	dir := filepath.Join(sessionLogDir, key.dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, "", fmt.Errorf("creating connection log directory %s: %w", dir, err)
	}

	logPath := filepath.Join(dir, connID+".log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, "", fmt.Errorf("opening connection log file %s: %w", logPath, err)
	}

	// The per-connection file always uses JSON at DEBUG level for maximum capture.
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	combined := &fanOutHandler{
		primary:   baseLogger.Handler(),
		secondary: fileHandler,
	}

	return slog.New(combined), f, logPath, nil
}

// RemoveSessionLog deletes the log file of a connection that ended cleanly.
// It is a no-op if sessionLogDir is empty or the file does not exist.
func RemoveSessionLog(sessionLogDir string, key ConnKey, connID string) {
	if sessionLogDir == "" {
		return
	}
	logPath := filepath.Join(sessionLogDir, key.dir(), connID+".log")
	os.Remove(logPath)
}
