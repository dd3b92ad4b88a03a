package echoserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Server is the echo server with graceful shutdown.
type Server struct {
	httpServer *http.Server
	config     Config
	counter    counter
	health     *health
	handler    http.Handler
}

// New creates a Server. Without options it listens on :8080 and logs
// nothing.
func New(opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "echoserver"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}

	s := &Server{config: cfg, health: newHealth(cfg.ServiceName)}
	if cfg.Redis != nil {
		s.counter = newRedisCounter(cfg.Redis)
		s.health.addReadinessCheck("redis", func(ctx context.Context) error {
			return cfg.Redis.Ping(ctx).Err()
		})
	} else {
		s.counter = newMemoryCounter()
	}

	middlewares := []Middleware{RequestID()}
	if cfg.TracerProvider != nil {
		middlewares = append(middlewares, Tracing(cfg.TracerProvider, nil, cfg.ServiceName))
	}
	if cfg.MeterProvider != nil {
		if m, err := newServerMetrics(cfg.MeterProvider, cfg.ServiceName); err == nil {
			middlewares = append(middlewares, m.Middleware())
		} else {
			cfg.Logger.Warn().Err(err).Msg("server metrics disabled")
		}
	}
	middlewares = append(middlewares,
		Logger(cfg.Logger, cfg.ServiceName, "/metrics", "/livez", "/readyz"),
		Recovery(cfg.Logger),
	)

	s.handler = Chain(middlewares...)(s.routes())
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s
}

// Handler returns the routed handler with its middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves until ctx is cancelled or SIGTERM/SIGINT arrives,
// then shuts down gracefully within ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(shutdownChan)

	serverErrChan := make(chan error, 1)
	go func() {
		s.config.Logger.Info().
			Str("addr", s.httpServer.Addr).
			Str("service", s.config.ServiceName).
			Msg("server starting")

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
		close(serverErrChan)
	}()

	select {
	case err := <-serverErrChan:
		if err != nil {
			s.config.Logger.Error().Err(err).Msg("server error")
			return err
		}
	case sig := <-shutdownChan:
		s.config.Logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
		s.config.Logger.Info().Err(ctx.Err()).Msg("context cancelled, shutting down")
	}

	return s.shutdown(context.WithoutCancel(ctx))
}

func (s *Server) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.config.Logger.Error().Err(err).Msg("graceful shutdown failed, forcing close")
		if closeErr := s.httpServer.Close(); closeErr != nil {
			s.config.Logger.Error().Err(closeErr).Msg("force close failed")
		}
		return err
	}

	s.config.Logger.Info().Msg("server stopped gracefully")
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
