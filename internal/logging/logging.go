// Package logging provides the structured logger shared by the transport,
// connio, rpc and handshake layers. Grounded on the teacher's
// internal/logging package: a global atomic.Pointer[slog.Logger], a
// text/json New constructor, and no third-party logging library.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Store(l)
}

// L returns the current global logger.
func L() *slog.Logger { return logger.Load() }

// Set replaces the global logger.
func Set(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// New builds a logger with the given format ("text" or "json") and level,
// writing to w (os.Stderr if nil).
func New(format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h)
}

// Component returns a logger scoped to a connection-core subsystem, e.g.
// Component("handshake") — every handshake/rpc/connio log line carries a
// "component" attribute so a single probe run interleaving several
// connections stays readable.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}
