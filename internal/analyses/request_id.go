package analyses

import "context"

type requestIDKey struct{}

// WithRequestID attaches the HTTP request ID to ctx so job logs and queue
// messages can be correlated with the request that created them.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// detached keeps the request ID but drops the request's deadline and
// cancellation, for jobs that outlive the HTTP call.
func detached(ctx context.Context) context.Context {
	return WithRequestID(context.Background(), RequestIDFromContext(ctx))
}
