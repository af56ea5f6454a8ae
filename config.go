package goLogin

import (
	"errors"
	"strings"
	"time"
)

// Config holds the tuning of an Engine. Zero values are replaced by
// defaultConfig through the Builder.
type Config struct {
	Flow        FlowConfig
	Gateway     GatewayConfig
	Credentials CredentialConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
FLOW CONFIG
====================================
*/

// FlowConfig controls the resend countdown of the verification and reset flows.
type FlowConfig struct {
	// ResendCooldown is how long a user waits before another code can be sent.
	ResendCooldown time.Duration
	// TickInterval is the countdown granularity; the visible countdown is
	// ResendCooldown / TickInterval.
	TickInterval time.Duration
}

// CountdownTicks returns the number of ticks the countdown starts from.
func (c FlowConfig) CountdownTicks() int {
	if c.TickInterval <= 0 {
		return 0
	}
	return int(c.ResendCooldown / c.TickInterval)
}

/*
====================================
GATEWAY CONFIG
====================================
*/

// GatewayConfig bounds calls to the identity provider.
type GatewayConfig struct {
	// CallTimeout applies to every provider call. Zero means no timeout.
	CallTimeout time.Duration
	// SignOutTimeout bounds the best-effort remote sign-out.
	SignOutTimeout time.Duration
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// CredentialConfig controls the "remember me" cache.
type CredentialConfig struct {
	Enabled bool
	// Service is the fixed key the record is stored under.
	Service string
	// MaxAge expires a stored credential. Zero keeps it until overwritten
	// or cleared.
	MaxAge time.Duration
	// ForgetOnSignOut clears the stored credential on explicit sign-out.
	ForgetOnSignOut bool
}

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds each sink call's context. Zero means no deadline.
	SinkTimeout time.Duration
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultServiceName is the key the remembered credential lives under.
const DefaultServiceName = "LoginAppAuth"

func defaultConfig() Config {
	return Config{
		Flow: FlowConfig{
			ResendCooldown: 60 * time.Second,
			TickInterval:   time.Second,
		},
		Gateway: GatewayConfig{
			CallTimeout:    30 * time.Second,
			SignOutTimeout: 10 * time.Second,
		},
		Credentials: CredentialConfig{
			Enabled:         true,
			Service:         DefaultServiceName,
			MaxAge:          30 * 24 * time.Hour,
			ForgetOnSignOut: false,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  256,
			DropIfFull:  true,
			SinkTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Credentials.Service = strings.TrimSpace(cfg.Credentials.Service)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks that c can drive an Engine.
func (c *Config) Validate() error {
	// Flow
	if c.Flow.TickInterval <= 0 {
		return errors.New("Flow TickInterval must be > 0")
	}
	if c.Flow.ResendCooldown < c.Flow.TickInterval {
		return errors.New("Flow ResendCooldown must be >= TickInterval")
	}
	if c.Flow.ResendCooldown%c.Flow.TickInterval != 0 {
		return errors.New("Flow ResendCooldown must be a multiple of TickInterval")
	}

	// Gateway
	if c.Gateway.CallTimeout < 0 {
		return errors.New("Gateway CallTimeout must be >= 0")
	}
	if c.Gateway.SignOutTimeout < 0 {
		return errors.New("Gateway SignOutTimeout must be >= 0")
	}

	// Credentials
	if c.Credentials.Enabled && strings.TrimSpace(c.Credentials.Service) == "" {
		return errors.New("Credentials Service must be set when enabled")
	}
	if c.Credentials.MaxAge < 0 {
		return errors.New("Credentials MaxAge must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	return nil
}
