// Package logging provides the structured, colorized console logger used
// throughout the CLI and the orchestrator's child-process fan-in, per
// SPEC_FULL.md §10 "Ambient stack": log/slog as the structured core,
// fronted by a small colorized handler adapted from the teacher's
// kernel/utils/logger.go level/color table, stripped of its WASM/
// syscall/js console bridge (no browser host exists in this system).
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// levelColors mirrors the teacher's levelColors table (kernel/utils/logger.go),
// re-keyed to slog's levels.
var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[36m", // cyan
	slog.LevelInfo:  "\033[32m", // green
	slog.LevelWarn:  "\033[33m", // yellow
	slog.LevelError: "\033[31m", // red
}

const colorReset = "\033[0m"

// Handler is a slog.Handler that renders "[time] [LEVEL] [component] msg
// key=value ..." lines, optionally colorized, matching the teacher's own
// line shape (see kernel/utils/logger.go's log method) but built on
// slog's structured attribute model instead of a bespoke Field type.
type Handler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Leveler
	colorize  bool
	component string
	attrs     []slog.Attr
}

// Options configures a new Handler.
type Options struct {
	Output    io.Writer
	Level     slog.Leveler
	Colorize  bool
	Component string
}

// New returns a logger rooted at a fresh Handler. Colorize should be
// disabled automatically by callers when stdout isn't a terminal (the CLI
// entrypoint makes this decision, not this package).
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	h := &Handler{
		mu:        &sync.Mutex{},
		out:       opts.Output,
		level:     opts.Level,
		colorize:  opts.Colorize,
		component: opts.Component,
	}
	return slog.New(h)
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	if h.colorize {
		b.WriteString(levelColors[r.Level])
	}

	b.WriteString("[")
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteString("] [")
	b.WriteString(fmt.Sprintf("%-5s", r.Level.String()))
	b.WriteString("]")

	if h.component != "" {
		b.WriteString(" [")
		b.WriteString(h.component)
		b.WriteString("]")
	}

	b.WriteString(" ")
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value)
		return true
	})

	if h.colorize {
		b.WriteString(colorReset)
	}
	b.WriteString("\n")

	_, err := h.out.Write([]byte(b.String()))
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	// Groups aren't used by this system's call sites; flatten instead of
	// nesting so existing key=value readers keep working.
	return h
}

// Component returns a child logger scoped to a component name, mirroring
// the teacher's Logger.With / per-component construction pattern.
func Component(base *slog.Logger, name string) *slog.Logger {
	return base.With(slog.String("component", name))
}

// IsTerminal reports whether w looks like an interactive terminal, used by
// the CLI entrypoint to decide whether to colorize. Kept intentionally
// crude (no cgo terminal ioctl): good enough to avoid ANSI codes leaking
// into redirected/piped output.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Since is a small helper for logging elapsed durations, e.g.
// logger.Info("build complete", "elapsed", logging.Since(start)).
func Since(start time.Time) time.Duration { return time.Since(start) }
