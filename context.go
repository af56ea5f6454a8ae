package goLogin

import "context"

type surfaceContextKey struct{}
type requestIDContextKey struct{}

// WithSurface tags ctx with the front-end that issued the call ("http",
// "shell", ...). The tag is copied into audit events.
func WithSurface(ctx context.Context, surface string) context.Context {
	return context.WithValue(ctx, surfaceContextKey{}, surface)
}

// WithRequestID attaches a caller correlation ID that is copied into audit
// events and log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func surfaceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(surfaceContextKey{}).(string); ok {
		return v
	}
	return ""
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return v
	}
	return ""
}
