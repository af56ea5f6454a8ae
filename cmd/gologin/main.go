// Command gologin runs the login flows against the fake or a Cognito
// identity provider, either as an interactive shell or as a JSON HTTP API.
//
// Usage:
//
//	gologin [-env .env] [-provider fake|cognito] shell
//	gologin [-env .env] [-provider fake|cognito] serve
//
// Configuration comes from the environment and the .env file; see
// internal/appconfig for the variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/MrEthical07/goLogin/credential"
	"github.com/MrEthical07/goLogin/httpapi"
	"github.com/MrEthical07/goLogin/internal/appconfig"
	"github.com/MrEthical07/goLogin/internal/fakeidp"
	"github.com/MrEthical07/goLogin/internal/shell"
	"github.com/MrEthical07/goLogin/middleware"
	"github.com/MrEthical07/goLogin/provider/cognito"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gologin: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile  = flag.String("env", ".env", "path of an optional .env file")
		provider = flag.String("provider", "", "identity provider: fake or cognito (overrides PROVIDER)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] shell|serve\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := "shell"
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}
	if mode != "shell" && mode != "serve" {
		flag.Usage()
		os.Exit(2)
	}

	if *provider != "" {
		if err := os.Setenv("PROVIDER", *provider); err != nil {
			return err
		}
	}
	cfg, err := appconfig.LoadFile(*envFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if mode == "serve" {
		return serve(ctx, cfg, engine, logger)
	}
	return shell.New(engine, os.Stdin, os.Stdout).Run(ctx)
}

func newLogger(cfg *appconfig.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func buildEngine(cfg *appconfig.Config, logger *slog.Logger) (*goLogin.Engine, func(), error) {
	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	idp, err := newProvider(cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}

	engineCfg := cfg.EngineConfig()
	b := goLogin.New().
		WithConfig(engineCfg).
		WithProvider(idp).
		WithLogger(logger)

	switch cfg.CredentialBackend {
	case "file":
		backend, err := credential.NewFileBackend(cfg.CredentialDir)
		if err != nil {
			return nil, cleanup, err
		}
		b.WithCredentialBackend(backend)
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func() { _ = client.Close() })
		b.WithRedis(client)
	}

	if cfg.CredentialSecret != "" {
		service := engineCfg.Credentials.Service
		key, err := credential.DeriveKey([]byte(cfg.CredentialSecret), service)
		if err != nil {
			return nil, cleanup, err
		}
		sealer, err := credential.NewXChaChaSealer(key, service)
		if err != nil {
			return nil, cleanup, err
		}
		b.WithSealer(sealer)
	}

	if cfg.AuditEnabled {
		b.WithAuditSink(goLogin.NewJSONWriterSink(os.Stderr))
	}

	engine, err := b.Build()
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, engine.Close)
	return engine, cleanup, nil
}

func newProvider(cfg *appconfig.Config, logger *slog.Logger) (goLogin.IdentityProvider, error) {
	switch cfg.Provider {
	case "cognito":
		return cognito.New(cognito.Config{
			Region:            cfg.CognitoRegion,
			ClientID:          cfg.CognitoClientID,
			ClientSecret:      cfg.CognitoClientSecret,
			Endpoint:          cfg.CognitoEndpoint,
			RequestsPerSecond: cfg.CognitoRPS,
		})
	case "fake":
		// The fake never sends mail, so codes go to the log.
		return fakeidp.New(fakeidp.Options{
			FixedCode: cfg.FakeFixedCode,
			Codes: func(purpose, username, code string) {
				logger.Info("fake provider code", "purpose", purpose, "username", username, "code", code)
			},
		}), nil
	}
	return nil, errors.New("unknown provider " + cfg.Provider)
}

func serve(ctx context.Context, cfg *appconfig.Config, engine *goLogin.Engine, logger *slog.Logger) error {
	apiCfg := httpapi.Config{}
	if cfg.ThrottleRPS > 0 {
		apiCfg.Throttle = &middleware.ThrottleConfig{
			Rate:            rate.Limit(cfg.ThrottleRPS),
			Burst:           cfg.ThrottleBurst,
			CleanupInterval: 5 * time.Minute,
		}
	}
	api, err := httpapi.New(engine, apiCfg, logger)
	if err != nil {
		return err
	}
	return api.ListenAndServe(ctx, cfg.HTTPAddr, 10*time.Second)
}
