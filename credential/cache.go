package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Options configure a Cache.
type Options struct {
	// Service is the key the record is stored under.
	Service string
	// MaxAge expires records. Zero disables expiry.
	MaxAge time.Duration
	// Sealer encrypts the encoded record when set.
	Sealer Sealer
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Cache holds at most one remembered credential.
type Cache struct {
	backend Backend
	service string
	maxAge  time.Duration
	sealer  Sealer
	now     func() time.Time
}

func NewCache(backend Backend, opts Options) (*Cache, error) {
	if backend == nil {
		return nil, errors.New("credential backend required")
	}
	service := strings.TrimSpace(opts.Service)
	if service == "" {
		return nil, errors.New("credential service required")
	}
	if opts.MaxAge < 0 {
		return nil, errors.New("credential max age must be >= 0")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		backend: backend,
		service: service,
		maxAge:  opts.MaxAge,
		sealer:  opts.Sealer,
		now:     now,
	}, nil
}

// Service returns the key records are stored under.
func (c *Cache) Service() string {
	return c.service
}

// Save overwrites the stored record.
func (c *Cache) Save(ctx context.Context, username, password string) error {
	data, err := Encode(Record{
		Username: username,
		Password: password,
		SavedAt:  c.now(),
	})
	if err != nil {
		return err
	}
	if c.sealer != nil {
		data, err = c.sealer.Seal(data)
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
	}
	return c.backend.Set(ctx, c.service, data, c.maxAge)
}

// Load returns the stored record. ok is false when nothing usable is stored;
// corrupt and expired records are deleted and reported as absent.
func (c *Cache) Load(ctx context.Context) (Record, bool, error) {
	data, err := c.backend.Get(ctx, c.service)
	if errors.Is(err, ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	if c.sealer != nil {
		data, err = c.sealer.Open(data)
		if err != nil {
			return Record{}, false, c.discard(ctx)
		}
	}

	rec, err := Decode(data)
	if err != nil {
		return Record{}, false, c.discard(ctx)
	}

	if c.maxAge > 0 && c.now().Sub(rec.SavedAt) > c.maxAge {
		return Record{}, false, c.discard(ctx)
	}
	return rec, true, nil
}

// Clear removes the stored record. Clearing an empty cache is not an error.
func (c *Cache) Clear(ctx context.Context) error {
	return c.backend.Delete(ctx, c.service)
}

func (c *Cache) discard(ctx context.Context) error {
	if err := c.backend.Delete(ctx, c.service); err != nil {
		return fmt.Errorf("discard unusable credential: %w", err)
	}
	return nil
}
