package credential

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps blobs in process memory. It is the default when no
// durable store is configured.
type MemoryBackend struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, data []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}
