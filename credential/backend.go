package credential

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Backend when no blob is stored under key.
var ErrNotFound = errors.New("credential not found")

// Backend stores opaque blobs by key. ttl of zero means no expiry; backends
// that cannot expire entries ignore it and rely on the Cache age check.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
