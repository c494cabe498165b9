// Package contextkeys holds the context keys shared across groundup
// packages. Keys live here so that tenancy, httputil and observability can
// read each other's values without importing each other.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// TenantKey holds the tenancy.Context set by tenancy.Middleware (or
	// tenancy.WithContext for non-HTTP callers such as groundup-admin).
	TenantKey Key = "tenant_context"

	// RequestIDKey holds the request ID string set by
	// httputil.RequestIDMiddleware.
	RequestIDKey Key = "request_id"

	// LoggerKey holds the *observability.Logger set by
	// httputil.LoggingMiddleware.
	LoggerKey Key = "logger"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID returns the request ID, or "" outside an HTTP request
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithLogger stores logger untyped; observability wraps it with the
// concrete type.
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}
