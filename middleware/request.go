package middleware

import (
	"context"
	"net/http"
	"strings"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/google/uuid"
)

// RequestIDHeader is read from the request and echoed on the response.
const RequestIDHeader = "X-Request-ID"

type requestIDContextKey struct{}

// RequestIDFromContext returns the ID assigned by Tag.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(string)
	return id, ok && id != ""
}

// Tag assigns a request ID (the caller's, when it sent a sane one) and marks
// the context with surface so goLogin audit events can tell front-ends apart.
func Tag(surface string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sanitizeRequestID(r.Header.Get(RequestIDHeader))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestIDContextKey{}, id)
			ctx = goLogin.WithRequestID(ctx, id)
			ctx = goLogin.WithSurface(ctx, surface)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sanitizeRequestID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > 64 {
		return ""
	}
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return ""
		}
	}
	return v
}
