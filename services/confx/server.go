// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package confx assembles the dynamic configuration service: storage,
// version lifecycle, dependency graph, evaluation, and the live-update
// distributor, behind one HTTP server.
package confx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/confx/services/confx/condition"
	"github.com/AleutianAI/confx/services/confx/dependency"
	"github.com/AleutianAI/confx/services/confx/evaluation"
	"github.com/AleutianAI/confx/services/confx/middleware"
	"github.com/AleutianAI/confx/services/confx/notify"
	"github.com/AleutianAI/confx/services/confx/observability"
	"github.com/AleutianAI/confx/services/confx/routes"
	"github.com/AleutianAI/confx/services/confx/rules"
	badgerstore "github.com/AleutianAI/confx/services/confx/storage/badger"
	"github.com/AleutianAI/confx/services/confx/versions"
)

const serviceName = "confx-service"

// Config holds the runtime settings for the service.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// DataDir is the badger database directory. Empty runs fully
	// in-memory, which is only useful for tests and local trials.
	DataDir string `yaml:"data_dir"`

	// OTelEndpoint is the OTLP gRPC collector address. Empty disables
	// trace export.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`

	// LogDir enables file logging when set.
	LogDir string `yaml:"log_dir"`

	// GinMode selects gin's mode: debug, release, or test.
	GinMode string `yaml:"gin_mode"`
}

// WithDefaults fills unset fields with production defaults.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 12300
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GinMode == "" {
		c.GinMode = gin.ReleaseMode
	}
	return c
}

// Service owns the wired components and the HTTP server lifecycle.
type Service struct {
	cfg      Config
	logger   *slog.Logger
	storeCfg badgerstore.Config

	store       *badgerstore.Store
	distributor *notify.Distributor
	router      *gin.Engine
}

// New opens storage and wires every component. The caller must Run the
// returned service or Close it.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	storeCfg := badgerstore.DefaultConfig()
	storeCfg.Path = cfg.DataDir
	storeCfg.Logger = logger
	if cfg.DataDir == "" {
		logger.Warn("no data directory configured, running with in-memory storage")
		storeCfg = badgerstore.InMemoryConfig()
	}
	db, err := badgerstore.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	store := badgerstore.NewStore(db, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	distributor := notify.NewDistributor(notify.NewRegistry(logger), logger)
	distributor.OnBroadcast = func(eventType string) {
		metrics.BroadcastsTotal.WithLabelValues(eventType).Inc()
	}
	manager := versions.NewManager(store, distributor, logger)
	graph := dependency.NewGraph(store, logger)
	resolver := dependency.NewResolver(store, logger)
	ruleEval := rules.NewEvaluator(condition.NewExprEvaluator(), logger)
	orchestrator := evaluation.NewOrchestrator(store, resolver, ruleEval, logger)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(otelgin.Middleware(serviceName))

	routes.SetupRoutes(router, routes.Deps{
		Store:       store,
		Versions:    manager,
		Graph:       graph,
		Evaluator:   orchestrator,
		Distributor: distributor,
		Metrics:     metrics,
		Registry:    registry,
	})

	return &Service{
		cfg:         cfg,
		logger:      logger,
		storeCfg:    storeCfg,
		store:       store,
		distributor: distributor,
		router:      router,
	}, nil
}

// Router exposes the configured gin engine, primarily for tests.
func (s *Service) Router() *gin.Engine { return s.router }

// Run starts the distributor, storage GC, and HTTP server, then
// blocks until SIGINT/SIGTERM or a fatal server error. Shutdown is
// graceful: in-flight requests get a drain window, live streams are
// closed, and storage is flushed.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := observability.InitTracer(ctx, s.cfg.OTelEndpoint, serviceName, s.logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.distributor.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		badgerstore.RunGC(s.store.DB(), s.storeCfg, groupCtx.Done(), s.logger)
		return nil
	})
	group.Go(func() error {
		s.logger.Info("confx server listening", "port", s.cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	if closeErr := s.store.Close(); closeErr != nil {
		s.logger.Error("failed to close storage", "error", closeErr)
		if err == nil {
			err = closeErr
		}
	}
	s.logger.Info("confx server stopped")
	return err
}

// Close releases resources without running the server. Run handles its
// own cleanup; Close is for callers that only needed New.
func (s *Service) Close() error {
	return s.store.Close()
}
