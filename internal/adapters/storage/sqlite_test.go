package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/edgebot/internal/adapters/storage"
	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.TradeStore = (*storage.SQLiteStorage)(nil)
	_ ports.TradeStore = (*storage.Memory)(nil)
)

var entry = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

func makePosition(id, market string) domain.Position {
	return domain.Position{
		ID:              id,
		MarketID:        market,
		Asset:           "BTC",
		Direction:       domain.DirectionNo,
		EntryPrice:      0.62,
		Size:            40,
		TakeProfitPrice: 0.50,
		StopLossPrice:   0.72,
		EntryTime:       entry,
		Expiry:          entry.Add(6 * time.Hour),
		MaxHold:         4 * time.Hour,
		Status:          domain.StatusOpen,
		FairValue:       0.48,
		EntryDivergence: 0.07,
		TracksDiverge:   true,
	}
}

func closeOf(p domain.Position, exit float64, pnl float64, at time.Time) domain.ClosedTrade {
	p.Status = domain.StatusClosed
	return domain.ClosedTrade{
		Position:   p,
		ExitPrice:  exit,
		ExitReason: domain.ExitTakeProfit,
		ExitTime:   at,
		GrossPnL:   pnl + 0.05,
		Fees:       0.05,
		PnL:        pnl,
		Hold:       at.Sub(p.EntryTime),
	}
}

// stores ejecuta el mismo test contra ambas implementaciones.
func stores(t *testing.T) map[string]ports.TradeStore {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]ports.TradeStore{
		"sqlite": db,
		"memory": storage.NewMemory(),
	}
}

func TestTradeStore_InsertAndGetOpen(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := makePosition("t-1", "KXBTC-97K")

			id, err := s.InsertTrade(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, "t-1", id)

			open, err := s.GetOpenTrades(ctx)
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, p, open[0])
		})
	}
}

func TestTradeStore_CloseTrade(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := makePosition("t-1", "KXBTC-97K")
			_, err := s.InsertTrade(ctx, p)
			require.NoError(t, err)

			ct := closeOf(p, 0.50, 7.69, entry.Add(time.Hour))
			require.NoError(t, s.CloseTrade(ctx, ct))

			open, err := s.GetOpenTrades(ctx)
			require.NoError(t, err)
			assert.Empty(t, open)

			closed, err := s.GetClosedTrades(ctx)
			require.NoError(t, err)
			require.Len(t, closed, 1)
			assert.Equal(t, ct, closed[0])

			err = s.CloseTrade(ctx, ct)
			assert.ErrorIs(t, err, domain.ErrPositionClosed)

			err = s.CloseTrade(ctx, closeOf(makePosition("nope", "X"), 0.5, 0, entry))
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestTradeStore_RejectsEmptyID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.InsertTrade(context.Background(), makePosition("", "X"))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestTradeStore_ClosedOrderedByExit(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, b := makePosition("a", "A"), makePosition("b", "B")
			_, err := s.InsertTrade(ctx, a)
			require.NoError(t, err)
			_, err = s.InsertTrade(ctx, b)
			require.NoError(t, err)

			require.NoError(t, s.CloseTrade(ctx, closeOf(a, 0.5, 1, entry.Add(2*time.Hour))))
			require.NoError(t, s.CloseTrade(ctx, closeOf(b, 0.7, -5, entry.Add(time.Hour))))

			closed, err := s.GetClosedTrades(ctx)
			require.NoError(t, err)
			require.Len(t, closed, 2)
			assert.Equal(t, "b", closed[0].ID)
			assert.Equal(t, "a", closed[1].ID)
		})
	}
}

func TestTradeStore_Wallet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.GetWallet(ctx)
			require.ErrorIs(t, err, domain.ErrNotFound)

			w := domain.NewWallet(1000)
			w.Apply(-50)
			w.Apply(20)
			require.NoError(t, s.UpdateWallet(ctx, w, 20))

			got, err := s.GetWallet(ctx)
			require.NoError(t, err)
			assert.Equal(t, w, got)

			w.Apply(100)
			require.NoError(t, s.UpdateWallet(ctx, w, 100))
			got, err = s.GetWallet(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1070.0, got.Balance)
			assert.Equal(t, 1070.0, got.Peak)
		})
	}
}

func TestSQLiteStorage_Cycles(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, db.SaveCycle(ctx, domain.CycleSummary{
		At: now, Ticks: 12, Signals: 12, Actionable: 2, Opened: 1,
		Denied: map[domain.DenyReason]int{domain.DenyCooldown: 1},
	}))
	require.NoError(t, db.SaveCycle(ctx, domain.CycleSummary{At: now.Add(time.Second), Ticks: 3}))

	n, err := db.CountCycles(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = db.CountCycles(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
}
