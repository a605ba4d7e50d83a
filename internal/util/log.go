package util

import (
	"context"
	"fmt"

	"cloud.google.com/go/logging"
	"github.com/ajjensen13/gke"
)

type contextKey string

const (
	loggerContextKey contextKey = "logger"
	extraContextKey  contextKey = "extra"
)

// WithLoggerValue attaches a structured value to every log entry written
// through ctx or its descendants.
func WithLoggerValue(ctx context.Context, key string, val interface{}) context.Context {
	var nm map[string]interface{}
	p := ctx.Value(extraContextKey)
	if p != nil {
		pm := p.(map[string]interface{})
		nm = make(map[string]interface{}, len(pm)+1)
		for k, v := range pm {
			nm[k] = v
		}
	} else {
		nm = map[string]interface{}{}
	}

	nm[key] = val
	return context.WithValue(ctx, extraContextKey, nm)
}

// WithLogger attaches lg to ctx for use by Logf.
func WithLogger(ctx context.Context, lg gke.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, lg)
}

type logPayload struct {
	Message string
	Values  map[string]interface{}
}

func (l logPayload) String() string {
	return l.Message
}

// Logf writes a log entry through the logger attached to ctx. When no
// logger is attached (tests) it is a no-op.
func Logf(ctx context.Context, severity logging.Severity, format string, argv ...interface{}) {
	lg, ok := ctx.Value(loggerContextKey).(gke.Logger)
	if !ok {
		return
	}

	entry := logging.Entry{Severity: severity, Payload: newLogPayload(ctx, fmt.Sprintf(format, argv...))}
	gke.SetupSourceLocation(&entry, 1)
	lg.Log(entry)
}

func newLogPayload(ctx context.Context, msg string) logPayload {
	ret := logPayload{Message: msg}
	if v := ctx.Value(extraContextKey); v != nil {
		ret.Values = v.(map[string]interface{})
	}
	return ret
}
