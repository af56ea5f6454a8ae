// Package appconfig loads the goLogin command configuration from the
// environment and an optional .env file using Viper.
package appconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/spf13/viper"
)

// Config holds the command configuration.
type Config struct {
	// Provider selects the identity provider: "fake" or "cognito".
	Provider string `mapstructure:"PROVIDER"`

	CognitoRegion       string  `mapstructure:"COGNITO_REGION"`
	CognitoClientID     string  `mapstructure:"COGNITO_CLIENT_ID"`
	CognitoClientSecret string  `mapstructure:"COGNITO_CLIENT_SECRET"`
	CognitoEndpoint     string  `mapstructure:"COGNITO_ENDPOINT"`
	CognitoRPS          float64 `mapstructure:"COGNITO_RPS"`

	// FakeFixedCode makes the fake provider issue the same code every time.
	FakeFixedCode string `mapstructure:"FAKE_FIXED_CODE"`

	// CredentialBackend is "memory", "file" or "redis".
	CredentialBackend string `mapstructure:"CREDENTIAL_BACKEND"`
	CredentialDir     string `mapstructure:"CREDENTIAL_DIR"`
	// CredentialSecret seals the stored credential when set.
	CredentialSecret string        `mapstructure:"CREDENTIAL_SECRET"`
	CredentialMaxAge time.Duration `mapstructure:"CREDENTIAL_MAX_AGE"`
	ForgetOnSignOut  bool          `mapstructure:"FORGET_ON_SIGN_OUT"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`

	ResendCooldown time.Duration `mapstructure:"RESEND_COOLDOWN"`
	CallTimeout    time.Duration `mapstructure:"CALL_TIMEOUT"`
	AuditEnabled   bool          `mapstructure:"AUDIT_ENABLED"`

	HTTPAddr      string  `mapstructure:"HTTP_ADDR"`
	ThrottleRPS   float64 `mapstructure:"THROTTLE_RPS"`
	ThrottleBurst int     `mapstructure:"THROTTLE_BURST"`

	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present) then the environment. Env vars override .env.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit .env path. A missing file is ignored.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // missing file is fine
	}
	v.AutomaticEnv()

	v.SetDefault("PROVIDER", "fake")
	v.SetDefault("COGNITO_REGION", "")
	v.SetDefault("COGNITO_CLIENT_ID", "")
	v.SetDefault("COGNITO_CLIENT_SECRET", "")
	v.SetDefault("COGNITO_ENDPOINT", "")
	v.SetDefault("COGNITO_RPS", 0)
	v.SetDefault("FAKE_FIXED_CODE", "")
	v.SetDefault("CREDENTIAL_BACKEND", "memory")
	v.SetDefault("CREDENTIAL_DIR", "")
	v.SetDefault("CREDENTIAL_SECRET", "")
	v.SetDefault("CREDENTIAL_MAX_AGE", "720h")
	v.SetDefault("FORGET_ON_SIGN_OUT", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RESEND_COOLDOWN", "60s")
	v.SetDefault("CALL_TIMEOUT", "30s")
	v.SetDefault("AUDIT_ENABLED", false)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("THROTTLE_RPS", 5)
	v.SetDefault("THROTTLE_BURST", 20)
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.CredentialBackend = strings.ToLower(strings.TrimSpace(c.CredentialBackend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	switch c.Provider {
	case "fake":
	case "cognito":
		if c.CognitoClientID == "" {
			return errors.New("config: COGNITO_CLIENT_ID must be set for PROVIDER=cognito")
		}
		if c.CognitoRegion == "" && c.CognitoEndpoint == "" {
			return errors.New("config: COGNITO_REGION or COGNITO_ENDPOINT must be set for PROVIDER=cognito")
		}
	default:
		return fmt.Errorf("config: unknown PROVIDER %q", c.Provider)
	}

	switch c.CredentialBackend {
	case "memory", "redis":
	case "file":
		if c.CredentialDir == "" {
			return errors.New("config: CREDENTIAL_DIR must be set for CREDENTIAL_BACKEND=file")
		}
	default:
		return fmt.Errorf("config: unknown CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.ResendCooldown < time.Second || c.ResendCooldown%time.Second != 0 {
		return errors.New("config: RESEND_COOLDOWN must be a whole number of seconds >= 1s")
	}
	if c.CallTimeout < 0 || c.CredentialMaxAge < 0 {
		return errors.New("config: CALL_TIMEOUT and CREDENTIAL_MAX_AGE must be >= 0")
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}

// EngineConfig maps c onto an Engine configuration.
func (c *Config) EngineConfig() goLogin.Config {
	cfg := goLogin.DefaultConfig()
	cfg.Flow.ResendCooldown = c.ResendCooldown
	cfg.Gateway.CallTimeout = c.CallTimeout
	cfg.Credentials.MaxAge = c.CredentialMaxAge
	cfg.Credentials.ForgetOnSignOut = c.ForgetOnSignOut
	cfg.Audit.Enabled = c.AuditEnabled
	return cfg
}
