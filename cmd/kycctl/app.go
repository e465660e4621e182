package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"kycflow/internal/kyc/client"
	"kycflow/internal/kyc/flow"
	"kycflow/internal/kyc/metrics"
	"kycflow/internal/kyc/tracer"
	"kycflow/internal/platform/config"
	"kycflow/internal/platform/logger"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg      config.Client
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	client   *client.Client
	runner   *flow.Runner
}

func newApp() (*app, error) {
	cfg, err := config.LoadClient(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if rootFlags.baseURL != "" {
		cfg.BaseURL = rootFlags.baseURL
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// stdout carries command output; logs go to stderr.
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel)

	var tr tracer.Tracer = tracer.NoopTracer{}
	if rootFlags.trace {
		tr = tracer.NewOTel()
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	c := client.New(cfg.BaseURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithAdminToken(cfg.AdminToken),
		client.WithUserAgent("kycctl/"+version),
		client.WithLogger(log),
		client.WithTracer(tr),
	)

	runner, err := flow.New(c, c,
		flow.WithInterval(cfg.PollInterval),
		flow.WithUserID(cfg.UserID),
		flow.WithLogger(log),
		flow.WithMetrics(m),
		flow.WithTracer(tr),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  m,
		client:   c,
		runner:   runner,
	}, nil
}

// metricsRouter exposes the client registry for scraping while a long
// command runs.
func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// serveMetrics serves /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

// runWithMetrics runs fn, serving /metrics next to it when a metrics address
// is configured. The server stops once fn returns.
func (a *app) runWithMetrics(ctx context.Context, fn func(context.Context) error) error {
	if a.cfg.MetricsAddr == "" {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveMetrics(gctx, a.cfg.MetricsAddr, a.registry, a.log)
	})
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}
