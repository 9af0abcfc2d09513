// Package cli implements the reviewcraft command-line interface.
//
// Commands render review mockups in a headless browser and export the card
// to a file or the clipboard, serve the preview with its image proxy, and
// manage review files and the conversion cache. The CLI is built using cobra
// and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - export: Save a review card as PNG or JPEG, optionally on every file change
//   - copy: Put a review card on the clipboard
//   - serve: Serve the preview page and the image proxy
//   - new: Create a review file interactively or from flags
//   - avatar, platforms, cache: Helpers
//
// # Configuration
//
// Settings come from $XDG_CONFIG_HOME/reviewcraft/config.toml, a .env file
// and REVIEWCRAFT_* variables, in that order. Flags override all three.
//
// --verbose switches the shared logger to debug level. Commands reach it
// through loggerFromContext.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps, e.g. "14:32:01.45".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, rounded to milliseconds, and keyvals.
func (p *progress) done(msg string, keyvals ...any) {
	keyvals = append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))
	p.logger.Info(msg, keyvals...)
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx for loggerFromContext.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
