package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alejandrodnm/edgebot/config"
	"github.com/alejandrodnm/edgebot/internal/adapters/notify"
	"github.com/alejandrodnm/edgebot/internal/adapters/storage"
	"github.com/alejandrodnm/edgebot/internal/application/engine/paper"
	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/metrics"
	"github.com/alejandrodnm/edgebot/internal/replay"
)

func runReplay(ctx context.Context, cfg *config.Config, path string, rec *metrics.Recorder) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay %q: %w", path, err)
	}
	defer f.Close()

	batches, err := replay.ReadBatches(f)
	if err != nil {
		return err
	}
	slog.Info("=== REPLAY MODE ===", "file", path, "batches", len(batches))

	sum, err := replay.Run(ctx, cfg, batches, paper.Options{Metrics: rec})
	if err != nil {
		return err
	}

	console := notify.NewConsole(true)
	console.PrintTrades(sum.Closed)
	w := domain.NewWallet(cfg.Trading.InitialBalance)
	for _, t := range sum.Closed {
		w.Apply(t.PnL)
	}
	console.PrintReport(domain.Performance(domain.SanitizeTrades(sum.Closed), cfg.Trading.InitialBalance), w)

	slog.Info("replay complete",
		"batches", sum.Batches,
		"signals", sum.Signals,
		"actionable", sum.Actionable,
		"trades", sum.Trades,
		"win_rate", fmt.Sprintf("%.1f%%", sum.WinRate*100),
		"pnl", fmt.Sprintf("$%+.2f", sum.TotalPnL),
		"balance", fmt.Sprintf("$%.2f", sum.FinalBalance),
		"validated", sum.Validation.Sufficient,
		"overfit", sum.Validation.Overfit,
	)
	return nil
}

func runReport(ctx context.Context, cfg *config.Config) error {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}
	defer store.Close()

	trades, err := store.GetClosedTrades(ctx)
	if err != nil {
		return err
	}
	w, err := store.GetWallet(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		w = domain.NewWallet(cfg.Trading.InitialBalance)
	case err != nil:
		return err
	}

	console := notify.NewConsole(true)
	console.PrintTrades(trades)
	console.PrintReport(domain.Performance(domain.SanitizeTrades(trades), w.InitialBalance), w)
	return nil
}
