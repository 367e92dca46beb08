package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/edgebot/config"
	"github.com/alejandrodnm/edgebot/internal/adapters/coinbase"
	"github.com/alejandrodnm/edgebot/internal/adapters/kalshi"
	"github.com/alejandrodnm/edgebot/internal/adapters/notify"
	"github.com/alejandrodnm/edgebot/internal/adapters/redisbus"
	"github.com/alejandrodnm/edgebot/internal/adapters/storage"
	"github.com/alejandrodnm/edgebot/internal/application/engine"
	"github.com/alejandrodnm/edgebot/internal/application/engine/paper"
	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/metrics"
	"github.com/alejandrodnm/edgebot/internal/ports"
)

const stopFile = "STOP"

func runPaper(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, once, table bool) error {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}
	defer store.Close()

	core, err := engine.BuildCore(cfg, store)
	if err != nil {
		return err
	}
	if err := core.Positions.Restore(ctx); err != nil {
		return err
	}

	console := notify.NewConsole(table)
	sinks := multiSink{console}
	if cfg.Redis.Addr != "" {
		pub, err := redisbus.New(ctx, redisbus.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
			Stream:   cfg.Redis.Stream,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	e := paper.New(core, paper.Options{Sink: sinks, Notifier: console, Cycles: store, Metrics: rec})

	var series []kalshi.Series
	assets := make(map[string]bool)
	var assetList []string
	for _, s := range cfg.Feed.Series {
		series = append(series, kalshi.Series{Ticker: s.Ticker, Asset: s.Asset})
		if !assets[s.Asset] {
			assets[s.Asset] = true
			assetList = append(assetList, s.Asset)
		}
	}
	feed := kalshi.NewFeed(kalshi.NewClient(cfg.Feed.KalshiBase), series)
	feed.SetWorkers(cfg.Feed.Workers)
	poller := paper.NewPoller(
		feed,
		coinbase.NewClient(cfg.Feed.CoinbaseBase),
		assetList,
	)

	w := core.Positions.Wallet()
	slog.Info("paper trading started, press Ctrl+C or create STOP file to exit",
		"balance", fmt.Sprintf("$%.2f", w.Balance),
		"open", len(core.Positions.Open()),
		"series", len(series),
	)

	runCycle(ctx, e, poller, console, table)
	if once {
		return nil
	}

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("paper trading stopped (signal)")
			printSummary(context.Background(), store, console, core)
			return nil
		case <-ticker.C:
			if _, err := os.Stat(stopFile); err == nil {
				slog.Info("STOP file detected, shutting down paper trading")
				_ = os.Remove(stopFile)
				printSummary(ctx, store, console, core)
				return nil
			}
			runCycle(ctx, e, poller, console, table)
		}
	}
}

func runCycle(ctx context.Context, e *paper.Engine, src paper.BatchSource, console *notify.Console, table bool) {
	res, err := e.RunOnce(ctx, src)
	if res == nil {
		slog.Error("paper cycle failed", "err", err)
		return
	}
	if err != nil {
		slog.Warn("paper cycle completed with errors", "err", err)
	}
	open := e.Core().Positions.Open()
	console.PrintCycle(res.Summary, len(open))
	if table {
		console.PrintOpen(open, res.Summary.At)
	}
}

func printSummary(ctx context.Context, store ports.TradeStore, console *notify.Console, core *engine.Core) {
	trades, err := store.GetClosedTrades(ctx)
	if err != nil {
		slog.Warn("could not generate exit summary", "err", err)
		return
	}
	w := core.Positions.Wallet()
	console.PrintReport(domain.Performance(domain.SanitizeTrades(trades), w.InitialBalance), w)
}

// multiSink reparte las señales entre varios sinks y junta sus errores.
type multiSink []ports.SignalSink

func (m multiSink) Publish(ctx context.Context, signals []domain.Signal) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, signals); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
