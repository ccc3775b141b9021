package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"margincore/config"
	"margincore/core/bank"
	"margincore/native/common"
	"margincore/native/margin"
	"margincore/native/vault"
	"margincore/observability/logging"
	"margincore/observability/metrics"
	"margincore/rpc"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var logOpts *logging.Options
	if cfg.LogFile != "" {
		logOpts = &logging.Options{File: cfg.LogFile, MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28}
	}
	logger := logging.Setup(cfg.ServiceName, cfg.Environment, logOpts)

	custodian, admin, operator, err := cfg.Addresses()
	if err != nil {
		logger.Error("invalid role addresses", slog.Any("error", err))
		os.Exit(1)
	}

	ledger := bank.NewLedger()
	collat := vault.New(ledger, custodian, admin)
	mode := margin.NewAdminSwitch(operator)
	hub := rpc.NewHub()

	engine := margin.NewEngine()
	engine.SetState(margin.NewMemoryState())
	engine.SetLedger(ledger)
	engine.SetVault(collat)
	engine.SetModeView(mode)
	engine.SetEmitter(metrics.InstrumentedEmitter{Next: hub})

	quota := common.RequestQuota{
		MaxRequestsPerWindow: cfg.QuotaMaxRequests,
		WindowSeconds:        cfg.QuotaWindowSecond,
	}
	server := rpc.NewServer(engine, mode, hub, logger, quota)

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("rpc server listening", "address", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
}
