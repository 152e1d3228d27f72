package ldapread

import (
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Logger is the structured logging interface used throughout the package.
type Logger interface {
	Trace(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NewLogger returns a Logger emitting through hclog at the given level.
func NewLogger(name string, level hclog.Level) Logger {
	return &hclogAdapter{l: hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: level,
	})}
}

// WrapHCLog adapts an existing hclog.Logger.
func WrapHCLog(l hclog.Logger) Logger {
	return &hclogAdapter{l: l}
}

type hclogAdapter struct {
	l hclog.Logger
}

func (a *hclogAdapter) Trace(msg string, fields map[string]any) { a.l.Trace(msg, flatten(fields)...) }
func (a *hclogAdapter) Debug(msg string, fields map[string]any) { a.l.Debug(msg, flatten(fields)...) }
func (a *hclogAdapter) Info(msg string, fields map[string]any)  { a.l.Info(msg, flatten(fields)...) }
func (a *hclogAdapter) Warn(msg string, fields map[string]any)  { a.l.Warn(msg, flatten(fields)...) }
func (a *hclogAdapter) Error(msg string, fields map[string]any) { a.l.Error(msg, flatten(fields)...) }

func flatten(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range sanitizeFields(fields) {
		args = append(args, k, v)
	}
	return args
}

// nopLogger is the default when no Logger is configured.
type nopLogger struct{}

func (nopLogger) Trace(string, map[string]any) {}
func (nopLogger) Debug(string, map[string]any) {}
func (nopLogger) Info(string, map[string]any)  {}
func (nopLogger) Warn(string, map[string]any)  {}
func (nopLogger) Error(string, map[string]any) {}

var sensitiveKeys = map[string]bool{
	"password":    true,
	"passwd":      true,
	"secret":      true,
	"token":       true,
	"key":         true,
	"credential":  true,
	"credentials": true,
	"cookie":      true,
}

// sanitizeFields redacts secret-bearing fields before they reach the log
// sink. Bind secrets and paging cookies never appear in output; log the
// cookie length instead.
func sanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))
	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}
