package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketfeed/src/book"
	"marketfeed/src/candles"
	"marketfeed/src/config"
	"marketfeed/src/feed"
	"marketfeed/src/interfaces"
	"marketfeed/src/logger"
	"marketfeed/src/metrics"
	"marketfeed/src/models"
	"marketfeed/src/network"
	"marketfeed/src/server"
	"marketfeed/src/snapshot"
	"marketfeed/src/storage"
)

// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(cfg.Name, cfg.LogLevel)
	defer appLogger.Sync()

	m := metrics.New()

	// 1. Storage
	var db interfaces.IDatabase
	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger.Named("postgres"))
	default:
		db, err = storage.NewSQLiteDB(cfg.MConfig, appLogger.Named("sqlite"))
	}
	if err != nil {
		appLogger.Error(err, logger.NewField("op", "db_setup"))
		os.Exit(1)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Error(err, logger.NewField("op", "db_initialize"))
		os.Exit(1)
	}
	defer db.Close()

	// 2. Snapshot state, restored from the last run when available.
	store := snapshot.NewStore(cfg.Snapshot, db, appLogger.Named("snapshot"))
	if err := store.Load(); err != nil {
		appLogger.Warn("snapshot restore failed, starting empty",
			logger.NewField("error", err.Error()))
	}

	// 3. Candle aggregation and the matching engine.
	agg := candles.NewAggregator(cfg.Candles, db, appLogger.Named("candles"))
	engine := book.NewEngine(appLogger.Named("book"))

	// 4. Upstream quote source.
	netClient := network.NewClient(cfg.MConfig)
	source := feed.NewHTTPQuoteSource(cfg.MConfig, netClient, appLogger)

	// 5. HTTP and websocket surface. Subscription interest drives the
	// source's symbol set.
	srv := server.NewFeedServer(cfg.MConfig, appLogger.Named("server"), engine, store, db, m, server.UpstreamHooks{
		Subscribe:   source.AddSymbol,
		Unsubscribe: source.RemoveSymbol,
	})

	// 6. Fanout hooks.
	agg.OnClose = func(c models.MCandle) {
		m.CandlesClosed.Inc()
		srv.PublishCandle(c)
	}
	engine.OnTrade = func(t models.MTrade) {
		m.TradesExecuted.Inc()
		srv.PublishTrade(t)
	}

	// 7. Ingestion pipeline.
	ingestor := feed.NewIngestor(cfg.MConfig, appLogger, source, agg, store, srv, m)
	srv.Refresh = ingestor.RunCycle

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLogger.Info("shutting down", logger.NewField("signal", sig.String()))
		cancel()

		// Persist what we can before exiting.
		agg.Flush()
		if err := store.Save(); err != nil {
			appLogger.Warn("snapshot save failed", logger.NewField("error", err.Error()))
		}
		db.Close()
		appLogger.Sync()
		os.Exit(0)
	}()

	go agg.Run(ctx)
	go ingestor.Run(ctx)

	if err := srv.Start(ctx); err != nil {
		appLogger.Error(err, logger.NewField("op", "serve"))
		os.Exit(1)
	}
}
