// Package log is a small verbosity-aware wrapper around log/slog used by
// every package in stale.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Verbosity levels
const (
	LevelQuiet = iota // Default: only errors and warnings
	LevelInfo         // -v: decisions, counts, progress
	LevelDebug        // -vv: API calls, pagination, timing
	LevelTrace        // -vvv: full details
)

// Custom slog levels mapped to our verbosity
const (
	slogLevelTrace = slog.Level(-8) // Below debug
)

// Attribute keys shared by every run.
const (
	KeyRunID      = "run_id"
	KeyRepository = "repository"
	KeyIssue      = "issue"
	KeyError      = "error"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --log-format value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q: must be text or json", s)
	}
}

var (
	verbosity  int
	logger     *slog.Logger
	output     io.Writer
	format     = FormatText
	baseAttrs  []any
	inProgress bool // tracks if we have an in-progress line

	// audit records actions taken on GitHub regardless of verbosity
	audit *slog.Logger
)

// Configure sets up the global logger. attrs are attached to every record.
func Configure(level int, w io.Writer, f Format, attrs ...any) {
	verbosity = level
	output = w
	format = f

	// Map our verbosity to slog levels
	var slogLevel slog.Level
	switch {
	case level >= LevelTrace:
		slogLevel = slogLevelTrace
	case level >= LevelDebug:
		slogLevel = slog.LevelDebug
	case level >= LevelInfo:
		slogLevel = slog.LevelInfo
	default:
		slogLevel = slog.LevelWarn
	}

	baseAttrs = attrs
	logger = newLogger(w, f, slogLevel).With(attrs...)
	audit = newLogger(w, f, slog.LevelInfo).With(attrs...)
}

// SetAuditOutput sends audit records to w, keeping the format and base
// attributes of the last Configure.
func SetAuditOutput(w io.Writer) {
	audit = newLogger(w, format, slog.LevelInfo).With(baseAttrs...)
}

func newLogger(w io.Writer, f Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Info logs at info level (-v)
func Info(msg string, args ...any) {
	if verbosity >= LevelInfo {
		clearProgress()
		logger.Info(msg, args...)
	}
}

// Debug logs at debug level (-vv)
func Debug(msg string, args ...any) {
	if verbosity >= LevelDebug {
		clearProgress()
		logger.Debug(msg, args...)
	}
}

// Trace logs at trace level (-vvv)
func Trace(msg string, args ...any) {
	if verbosity >= LevelTrace {
		clearProgress()
		logger.Log(context.Background(), slogLevelTrace, msg, args...)
	}
}

// Warn logs at warn level (always visible)
func Warn(msg string, args ...any) {
	clearProgress()
	logger.Warn(msg, args...)
}

// Error logs at error level (always visible)
func Error(msg string, args ...any) {
	clearProgress()
	logger.Error(msg, args...)
}

// Audit logs an action on GitHub, or the decision that leads to one, at info
// level whatever the verbosity.
func Audit(msg string, args ...any) {
	clearProgress()
	audit.Info(msg, args...)
}

// Err returns an attribute for err. A nil error yields an empty group,
// which slog omits.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken returns a length indicator for a credential, never its content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// Progress prints a progress message with carriage return (no newline).
// Only shown at info level or higher, and never in JSON mode.
func Progress(f string, args ...any) {
	if verbosity >= LevelInfo && format != FormatJSON {
		inProgress = true
		_, _ = fmt.Fprintf(output, "\r"+f, args...)
	}
}

// ProgressDone completes a progress line with "done" and newline
func ProgressDone() {
	if verbosity >= LevelInfo && inProgress {
		_, _ = fmt.Fprintln(output, " done")
		inProgress = false
	}
}

// clearProgress ensures we don't write over a progress line
func clearProgress() {
	if inProgress {
		_, _ = fmt.Fprintln(output)
		inProgress = false
	}
}

func init() {
	// Default initialization with quiet mode to stderr
	output = os.Stderr
	verbosity = LevelQuiet
	logger = newLogger(output, FormatText, slog.LevelWarn)
	audit = newLogger(output, FormatText, slog.LevelInfo)
}
