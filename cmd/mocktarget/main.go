// cmd/mocktarget/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/inferload/internal/config"
	"github.com/FairForge/inferload/internal/logger"
	"github.com/FairForge/inferload/internal/target"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:  config.GetEnvOrDefault("MOCK_LOG_LEVEL", "info"),
		Format: config.GetEnvOrDefault("MOCK_LOG_FORMAT", logger.FormatJSON),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logger configuration: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := target.DefaultConfig()
	cfg.MinLatency = envDuration(log, "MOCK_MIN_LATENCY", cfg.MinLatency)
	cfg.MaxLatency = envDuration(log, "MOCK_MAX_LATENCY", cfg.MaxLatency)
	cfg.CapacityRPS = envFloat(log, "MOCK_CAPACITY_RPS", 0)
	cfg.Burst = int(envFloat(log, "MOCK_BURST", 1))
	cfg.FailureRatio = envFloat(log, "MOCK_FAILURE_RATIO", 0)

	srv, err := target.New(cfg, log)
	if err != nil {
		log.Fatal("invalid mock configuration", zap.Error(err))
	}

	addr := config.GetEnvOrDefault("MOCK_ADDR", ":8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down mock target...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
	}()

	log.Info("mock target listening",
		zap.String("addr", addr),
		zap.Duration("min_latency", cfg.MinLatency),
		zap.Duration("max_latency", cfg.MaxLatency),
		zap.Float64("capacity_rps", cfg.CapacityRPS),
		zap.Float64("failure_ratio", cfg.FailureRatio))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}

func envDuration(log *zap.Logger, key string, def time.Duration) time.Duration {
	raw := config.GetEnvOrDefault(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn("ignoring invalid duration", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return d
}

func envFloat(log *zap.Logger, key string, def float64) float64 {
	raw := config.GetEnvOrDefault(key, "")
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn("ignoring invalid number", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return f
}
