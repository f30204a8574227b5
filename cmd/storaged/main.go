package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storaged/internal/config"
	"github.com/kailas-cloud/storaged/internal/domain"
	logpkg "github.com/kailas-cloud/storaged/internal/logger"
	"github.com/kailas-cloud/storaged/internal/metrics"
	"github.com/kailas-cloud/storaged/internal/tenant"
	chiTransport "github.com/kailas-cloud/storaged/internal/transport/chi"
	chatuc "github.com/kailas-cloud/storaged/internal/usecase/chat"
	graphuc "github.com/kailas-cloud/storaged/internal/usecase/graph"
	healthuc "github.com/kailas-cloud/storaged/internal/usecase/health"
	vectoruc "github.com/kailas-cloud/storaged/internal/usecase/vector"
	"github.com/kailas-cloud/storaged/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting storaged",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_backend", cfg.Backends.Vector),
		zap.String("chat_backend", cfg.Backends.Chat),
		zap.String("graph_backend", cfg.Backends.Graph),
	)

	// A backend that cannot be reached at startup is fatal: no degraded serving.
	ctx := context.Background()
	eng, err := openEngines(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Storage backend unavailable", zap.Error(err))
	}
	defer eng.Close(context.Background(), logger)

	p, err := buildPorts(cfg.Backends, cfg.Redis.KeyPrefix, eng)
	if err != nil {
		logger.Fatal("Failed to mount adapters", zap.Error(err))
	}

	metrics.RegisterEngineMetrics()

	timeout := cfg.Engine.CallTimeout()
	vectors := vectoruc.New(p.vector, timeout, vectoruc.Limits{
		MaxUpsertItems: cfg.Limits.MaxUpsertItems,
		MaxK:           cfg.Limits.MaxK,
	})
	chats := chatuc.New(p.chat, timeout, cfg.Limits.MaxListLimit)
	graphs := graphuc.New(p.graph, timeout, cfg.Limits.MaxNeighbors)

	health := healthuc.New(map[string]healthuc.Pinger{
		"vector": vectors,
		"chat":   chats,
		"graph":  graphs,
	}, cfg.Engine.ReadinessTimeout())

	server := chiTransport.NewServer(
		vectors, chats, graphs, health,
		tenant.NewResolver(cfg.Tenant.Header, domain.Tenant(cfg.Tenant.Default), cfg.Tenant.MaxLength),
		chiTransport.Limits{
			DefaultListLimit: cfg.Limits.DefaultListLimit,
			DefaultNeighbors: cfg.Limits.DefaultNeighbors,
			MaxBodyBytes:     cfg.Limits.MaxBodyBytes,
		},
	)

	r := chiTransport.NewRouter(server, cfg.Auth.APIKey,
		chiMiddleware.RequestID,
		requestLogger(logger),
		jsonRecoverer(logger),
		metrics.Middleware(),
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
