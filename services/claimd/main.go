package claimd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"claimdrop/config"
	"claimdrop/core/events"
	"claimdrop/observability"
	"claimdrop/observability/logging"
	"claimdrop/observability/metrics"
	telemetry "claimdrop/observability/otel"
	"claimdrop/services/claimd/node"
	"claimdrop/services/claimd/server"
	"claimdrop/services/claimd/store"
)

// Main loads the configuration and serves the airdrop ledger until SIGINT or
// SIGTERM.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "claimd.toml", "path to claimd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.SetupWithOptions("claimd", cfg.Environment, logging.Options{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer func() { _ = logCloser.Close() }()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "claimd",
		Environment: cfg.Environment,
		InstanceID:  cfg.Instance.Address,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	settlements, err := store.Open(cfg.Settlements.DSN)
	if err != nil {
		return fmt.Errorf("open settlement store: %w", err)
	}
	defer func() { _ = settlements.Close() }()

	hub := server.NewHub()
	ledger, err := node.Open(cfg, node.Options{
		Logger: logger,
		Emitters: []events.Emitter{
			metrics.Airdrop(),
			store.NewIndexer(settlements, logger),
			hub,
		},
	})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	if inst, err := ledger.Engine().Instance(); err == nil {
		metrics.Airdrop().SetProtocolAccrued(inst.Address, observability.BigToFloat(inst.ProtocolAccruedTokens))
	}

	srv, err := server.New(server.Config{
		Node:  ledger,
		Store: settlements,
		Hub:   hub,
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.Secret(),
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: server.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("claimd listening",
			slog.String("address", cfg.ListenAddress),
			slog.String("instance", cfg.Instance.Address))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
