package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
	promexport "github.com/MrEthical07/goLogin/metrics/export/prometheus"
	"github.com/MrEthical07/goLogin/middleware"
	"github.com/go-chi/chi/v5"
)

// Surface tags audit events and logs produced through this API.
const Surface = "http"

// Config tunes the API server.
type Config struct {
	// MaxFlows caps open flows. Zero means 1024.
	MaxFlows int
	// FlowIdleTTL closes flows nobody touched for this long. Zero means 15m.
	FlowIdleTTL time.Duration
	// Throttle limits requests per client. Nil disables throttling.
	Throttle *middleware.ThrottleConfig
	// DisableMetrics drops GET /metrics.
	DisableMetrics bool
}

// Server serves the flow API for one Engine.
type Server struct {
	engine   *goLogin.Engine
	logger   *slog.Logger
	flows    *registry
	throttle *middleware.Throttle
	router   chi.Router

	stop chan struct{}
	done chan struct{}
}

// New builds the router. Call Close to release the flows and the janitor.
func New(engine *goLogin.Engine, cfg Config, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxFlows <= 0 {
		cfg.MaxFlows = 1024
	}
	if cfg.FlowIdleTTL <= 0 {
		cfg.FlowIdleTTL = 15 * time.Minute
	}

	s := &Server{
		engine: engine,
		logger: logger,
		flows:  newRegistry(cfg.MaxFlows, cfg.FlowIdleTTL, nil),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if cfg.Throttle != nil {
		s.throttle = middleware.NewThrottle(*cfg.Throttle, logger)
	}
	s.router = s.routes(cfg)

	go s.janitor(cfg.FlowIdleTTL / 2)
	return s, nil
}

func (s *Server) routes(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Tag(Surface))
	r.Use(middleware.Logging(s.logger))

	if !cfg.DisableMetrics {
		r.Method(http.MethodGet, "/metrics", promexport.NewPrometheusExporter(s.engine).Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if s.throttle != nil {
			r.Use(s.throttle.Middleware)
		}

		r.Post("/flows/{kind:signup|signin|reset}", s.createFlow)
		r.Route("/flows/{id}", func(r chi.Router) {
			r.Get("/", s.getFlow)
			r.Delete("/", s.closeFlow)
			r.Post("/{action}", s.flowAction)
		})

		r.Get("/session", s.getSession)
		r.Post("/session/refresh", s.refreshSession)
		r.Post("/session/sign-out", s.signOut)
		r.Delete("/credentials", s.forgetCredential)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// OpenFlows reports how many flows, tombstones included, are tracked.
func (s *Server) OpenFlows() int {
	return s.flows.len()
}

// Close closes every flow and stops background work. The Engine is not
// closed.
func (s *Server) Close() {
	select {
	case <-s.stop:
		return
	default:
	}
	close(s.stop)
	<-s.done
	s.flows.stop()
	if s.throttle != nil {
		s.throttle.Stop()
	}
}

func (s *Server) janitor(every time.Duration) {
	defer close(s.done)
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.flows.sweep(); n > 0 {
				s.logger.Info("idle flows closed", slog.Int("count", n))
			}
		case <-s.stop:
			return
		}
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within grace and closes s.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
