package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bursa/internal/platform/config"
	"bursa/internal/platform/httpserver"
	"bursa/internal/platform/logger"
	"bursa/internal/platform/metrics"
	platformmw "bursa/internal/platform/middleware"
	"bursa/internal/session/handler"
	"bursa/internal/session/importer"
	"bursa/internal/session/service"
	"bursa/internal/session/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the service package.
func main() {
	cfg := config.Load()
	log := logger.New()

	st, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("opening session database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	m := metrics.New()

	svc, err := service.New(st,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithFuzzyLimit(cfg.FuzzyLimit),
	)
	if err != nil {
		log.Error("building session service", "error", err)
		os.Exit(1)
	}

	policy := importer.Policy{}
	for _, c := range cfg.DropDuplicates {
		policy[importer.Classification(c)] = importer.ActionDropSecond
	}

	h := handler.New(svc, log, policy)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(platformmw.RequestLogger(log))
	h.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting session server", "addr", cfg.Addr, "db", cfg.DatabasePath)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
