// Package debug provides category-scoped debug logging and the process-wide
// slog setup for chorus.
//
// Categories select what to trace (CHORUS_DEBUG=providers,engine or "all");
// the level selects how much (CHORUS_LOG_LEVEL=TRACE|DEBUG|INFO|WARN|ERROR).
// Environment always wins over configuration.
//
//	debug.Log("providers", "stream opened", "backend", id)
//	debug.Trace("tools", "raw arguments", "args", args)
//
// Known categories: providers, engine, tools, fanout, mcp, conversation,
// transport, config.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LevelTrace is one step below slog.LevelDebug. Payload dumps only appear at
// this level.
const LevelTrace = slog.LevelDebug - 4

const (
	envCategories = "CHORUS_DEBUG"
	envLevel      = "CHORUS_LOG_LEVEL"
)

var categories atomic.Pointer[map[string]bool]

func init() {
	setCategories(os.Getenv(envCategories))
}

// Options configures the process logger.
type Options struct {
	Categories string
	Level      string

	// Format is "text" (default) or "json".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Init installs the default slog logger and the enabled category set.
func Init(opts Options) *slog.Logger {
	cats := os.Getenv(envCategories)
	if cats == "" {
		cats = opts.Categories
	}
	setCategories(cats)

	level := os.Getenv(envLevel)
	if level == "" {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, handlerOpts)
	} else {
		h = slog.NewTextHandler(out, handlerOpts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// Enabled reports whether the category is being traced.
func Enabled(category string) bool {
	m := *categories.Load()
	return m["all"] || m[category]
}

// Log emits a DEBUG record tagged with the category. No-op when disabled.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record tagged with the category.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceEnabled reports whether TRACE output would be written for category.
func TraceEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// ParseLevel converts a level name to a slog.Level, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate shortens s for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func setCategories(s string) {
	m := parseCategories(s)
	categories.Store(&m)
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for cat := range strings.SplitSeq(s, ",") {
		cat = strings.ToLower(strings.TrimSpace(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
