package goLogin

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goLogin/credential"
	"github.com/MrEthical07/goLogin/internal/countdown"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config

	provider IdentityProvider
	backend  credential.Backend
	redis    redis.UniversalClient
	sealer   credential.Sealer

	auditSink     AuditSink
	logger        *slog.Logger
	clock         func() time.Time
	tickerFactory countdown.TickerFactory

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the identity provider. Required.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithCredentialBackend stores the remembered credential in backend. It
// takes precedence over WithRedis.
func (b *Builder) WithCredentialBackend(backend credential.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis stores the remembered credential in Redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSealer encrypts the remembered credential at rest.
func (b *Builder) WithSealer(s credential.Sealer) *Builder {
	b.sealer = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) withClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) withTickerFactory(f countdown.TickerFactory) *Builder {
	b.tickerFactory = f
	return b
}

// Build validates the configuration and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = discardLogger()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	factory := b.tickerFactory
	if factory == nil {
		factory = countdown.RealTicker
	}

	engine := &Engine{
		config:        cfg,
		logger:        logger,
		clock:         clock,
		tickerFactory: factory,
	}
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.gateway = newGateway(b.provider, cfg.Gateway, engine.metrics, logger)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.session = newSessionState(engine)

	// -------- CREDENTIAL CACHE --------
	if cfg.Credentials.Enabled {
		backend := b.backend
		if backend == nil && b.redis != nil {
			backend = credential.NewRedisBackend(b.redis, "cred")
		}
		if backend == nil {
			backend = credential.NewMemoryBackend()
		}
		cache, err := credential.NewCache(backend, credential.Options{
			Service: cfg.Credentials.Service,
			MaxAge:  cfg.Credentials.MaxAge,
			Sealer:  b.sealer,
			Now:     clock,
		})
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		engine.creds = cache
	}

	b.built = true
	return engine, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
