package core

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDKey is a custom context key type for storing the request ID in context.
type RequestIDKey struct{}

// WithRequestID returns a new context with a generated request ID set.
func WithRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, uuid.New().String())
}

// RequestIDFromCtx returns the request ID stored in ctx, or "".
func RequestIDFromCtx(ctx context.Context) string {
	reqID, _ := ctx.Value(RequestIDKey{}).(string)
	return reqID
}

// LoggerFromCtx returns a slog.Logger with request_id field if present in context.
// trace_id and span_id are added when ctx carries a valid span context.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if reqID := RequestIDFromCtx(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return l
}

// BearerFromRequest extracts a bearer token from the Authorization header.
// Both "Bearer" and GitHub's legacy "token" schemes are accepted.
func BearerFromRequest(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, value, ok := strings.Cut(auth, " ")
	if !ok {
		return "", false
	}
	if !strings.EqualFold(scheme, "bearer") && !strings.EqualFold(scheme, "token") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
