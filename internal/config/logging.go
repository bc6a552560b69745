// Package config handles playerctl's own process configuration: engine
// option defaults and the log-level vocabulary exposed to hosts via
// RequestLogMessages.
package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace is a custom log level below Debug, for wire-level forensics
// (matches the "trace" entry in the level set below).
const LevelTrace = slog.Level(-8)

// LogLevels is the ordered set of level names a host may pass to
// RequestLogMessages, from least to most verbose. "no" is not a real
// level — passing it tears down a subscription instead of creating one.
var LogLevels = []string{"fatal", "error", "warn", "info", "status", "v", "debug", "trace"}

// LevelIndex returns the position of name in LogLevels, or -1 if name is
// unrecognized. Lower index means less verbose (higher severity).
func LevelIndex(name string) int {
	for i, l := range LogLevels {
		if l == name {
			return i
		}
	}
	return -1
}

// ParseLogLevel converts a level name to a slog.Level. Supported values
// are LogLevels' entries (case-insensitive); "status"/"v" map onto
// slog's Info/Debug bands since slog has no native concept of them.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "status":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "v":
		return slog.LevelDebug, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "fatal":
		return slog.LevelError + 4, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: %s)", s, strings.Join(LogLevels, " "))
	}
}

// ReplaceLogLevelNames customizes the level name for Trace in log output,
// the way slog.HandlerOptions.ReplaceAttr expects.
func ReplaceLogLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
