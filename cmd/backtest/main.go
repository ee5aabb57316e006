package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/momentum_backtest/internal/config"
	"github.com/vitos/momentum_backtest/internal/domain"
	"github.com/vitos/momentum_backtest/internal/frame"
	"github.com/vitos/momentum_backtest/internal/infrastructure/broker"
	"github.com/vitos/momentum_backtest/internal/infrastructure/chart"
	"github.com/vitos/momentum_backtest/internal/infrastructure/feed"
	"github.com/vitos/momentum_backtest/internal/infrastructure/logger"
	"github.com/vitos/momentum_backtest/internal/infrastructure/storage"
	"github.com/vitos/momentum_backtest/internal/usecase"
	"github.com/vitos/momentum_backtest/internal/web"
	"go.uber.org/zap"
)

func newFeed(cfg config.FeedConfig) domain.PriceFeed {
	if cfg.Source == config.FeedCSV {
		return feed.NewCSVFeed(cfg.CSVPath)
	}
	return feed.NewYahooFeed(cfg.BaseURL, cfg.Timeout)
}

func columnNames(f *frame.Frame) []string {
	keys := f.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return names
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default $CONFIG_FILE, then built-in settings)")
	serve := flag.Bool("serve", false, "serve the chart and run data over HTTP after the backtest")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	start, end, err := cfg.Period()
	if err != nil {
		fmt.Printf("Invalid period: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Fetch History
	raw, err := newFeed(cfg.Feed).FetchHistory(ctx, cfg.Symbol, start, end)
	if err != nil {
		log.Fatal("Failed to fetch price history", zap.String("symbol", cfg.Symbol), zap.Error(err))
	}
	log.Info("Columns in price table", zap.Strings("columns", columnNames(raw)))

	// 4. Prepare Series
	series, err := usecase.Reshape(raw, cfg.Symbol)
	if err != nil {
		log.Fatal("Failed to reshape price table", zap.Error(err))
	}
	if err := usecase.ComputeMovingAverages(series, cfg.Chart.MAWindows...); err != nil {
		log.Fatal("Failed to compute moving averages", zap.Error(err))
	}
	bars, err := usecase.Bars(series)
	if err != nil {
		log.Fatal("Failed to build bars", zap.Error(err))
	}

	// 5. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 6. Run Backtest
	paper := broker.NewPaperBroker(broker.PaperConfig{
		StartingCash:  decimal.NewFromFloat(cfg.Broker.StartingCash),
		CommissionPct: decimal.NewFromFloat(cfg.Broker.CommissionPct),
	})
	engine := usecase.NewSignalEngine(usecase.SignalParams{
		TakeProfitPct:  cfg.Strategy.TakeProfitPct,
		StopLossPct:    cfg.Strategy.StopLossPct,
		MaxHoldingDays: cfg.Strategy.MaxHoldingDays,
		Stake:          cfg.Strategy.Stake,
	})
	svc := usecase.NewBacktestService(engine, paper, store, log)

	result, err := svc.Run(ctx, usecase.BacktestRequest{
		Symbol: cfg.Symbol,
		Start:  start,
		End:    end,
		Bars:   bars,
	})
	if err != nil {
		log.Fatal("Backtest failed", zap.Error(err))
	}
	for _, r := range paper.Rejected() {
		log.Warn("Order rejected", zap.String("id", r.Order.ID), zap.Error(r.Reason))
	}

	// 7. Render Chart
	presenter := usecase.NewPresenter(chart.NewEChartsRenderer(), cfg.Chart.Title, log)
	if err := presenter.RenderFile(cfg.Chart.Output, series, cfg.Symbol, result.Buys, result.Sells); err != nil {
		log.Fatal("Failed to render chart", zap.Error(err))
	}

	if !*serve && !cfg.Server.Enabled {
		return
	}

	// 8. Serve Chart
	html, err := os.ReadFile(cfg.Chart.Output)
	if err != nil {
		log.Fatal("Failed to read chart", zap.Error(err))
	}
	server := web.NewServer(cfg.Server.Port, result, html, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()
	log.Info("Chart available", zap.String("url", fmt.Sprintf("http://localhost:%d/", cfg.Server.Port)))

	// 9. Wait for Shutdown
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
