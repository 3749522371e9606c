package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"waysystem/internal/config"
	"waysystem/internal/gather"
	"waysystem/internal/store"
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

	g := gather.NewDailyBarGatherer(gather.DailyBarOpts{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BatchSize:       cfg.Gather.BatchSize,
		MaxWorkers:      cfg.Gather.MaxWorkers,
		StartDate:       cfg.Gather.StartDate,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
	}, bars, db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gatherer", "name", g.Name())
	if err := g.Run(ctx); err != nil {
		logger.Error("gather failed", "error", err)
		os.Exit(1)
	}
}
