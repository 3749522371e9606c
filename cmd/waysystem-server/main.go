package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waysystem/internal/backtest"
	"waysystem/internal/config"
	"waysystem/internal/domain"
	"waysystem/internal/httpapi"
	"waysystem/internal/risk"
	"waysystem/internal/screen"
	"waysystem/internal/store"
	"waysystem/internal/strategy"
	"waysystem/internal/strategy/builtins"
	"waysystem/internal/util"
)

func main() {
	cfgPath := "config/waysystem.yaml"
	if p := os.Getenv("WAYSYSTEM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer db.Close()

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)

	limits := domain.RiskLimits{
		MaxSectorWeight: cfg.Risk.MaxSectorWeight,
		MaxVaR95:        cfg.Risk.MaxVaR95,
		MaxHHI:          cfg.Risk.MaxHHI,
	}

	srv := httpapi.NewServer(
		bars, db, db, db, registry,
		backtest.NewEngine(bars, registry, logger),
		screen.NewScreener(bars, db, registry, logger),
		risk.NewAnalyzer(bars, db, limits, cfg.Risk.LookbackDays, logger),
		httpapi.Defaults{
			InitialCapital: cfg.Backtest.InitialCapital,
			MaxPositions:   cfg.Backtest.MaxPositions,
			FeeRate:        cfg.Backtest.FeeRate,
		},
		logger,
	)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
