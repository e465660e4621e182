package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kycflow/internal/mockbackend"
	"kycflow/internal/platform/config"
	"kycflow/internal/platform/health"
	"kycflow/internal/platform/logger"
	"kycflow/internal/platform/metrics"
)

// main serves an in-memory verification backend for local runs of kycctl.
// Sessions live only as long as the process.
func main() {
	cfg := config.MockBackendFromEnv()
	log := logger.New(cfg.LogLevel)

	log.Info("initializing mock kyc backend",
		"addr", cfg.Addr,
		"stage_duration", cfg.StageDuration,
		"admin_token_set", cfg.AdminToken != "",
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := mockbackend.NewStore(mockbackend.DefaultCapacity)
	handler := mockbackend.New(store, mockbackend.Pipeline{StageDuration: cfg.StageDuration},
		mockbackend.WithLogger(log),
		mockbackend.WithMetrics(m),
	)

	hc := health.New("mock")
	hc.RegisterCheck("store", store.CheckCapacity)

	router := mockbackend.NewRouter(handler, hc, mockbackend.RouterConfig{
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully", "sessions", store.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
