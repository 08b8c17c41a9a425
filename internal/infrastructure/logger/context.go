package logger

import "context"

// contextKey is a private type for context keys used by the logger package
type contextKey string

// requestIDKey is the context key the request ID travels under, so storage
// logging can correlate queries with the HTTP request that issued them.
const requestIDKey contextKey = "request_id"

// WithRequestID returns a context carrying the request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID, or "" when absent
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
