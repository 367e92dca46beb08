package notify_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/edgebot/internal/adapters/notify"
	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)

func makeTrade(market string, pnl float64, reason domain.ExitReason) domain.ClosedTrade {
	return domain.ClosedTrade{
		Position: domain.Position{
			MarketID:   market,
			Direction:  domain.DirectionYes,
			EntryPrice: 0.46,
			Size:       50,
			EntryTime:  at.Add(-90 * time.Minute),
		},
		ExitPrice:  0.48,
		ExitReason: reason,
		ExitTime:   at,
		PnL:        pnl,
		Fees:       0.06,
		Hold:       90 * time.Minute,
	}
}

func TestConsole_NotifyClosed_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	err := n.NotifyClosed(context.Background(), []domain.ClosedTrade{
		makeTrade("KXBTCD-26MAR0117-T97000", 2.11, domain.ExitTakeProfit),
		makeTrade("KXETHD-26MAR0117-T3500", -4.5, domain.ExitStopLoss),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "KXBTCD-26MAR0117-T97000")
	assert.Contains(t, out, "+$2.11")
	assert.Contains(t, out, "-$4.50")
	assert.Contains(t, out, "take_profit")
	assert.Contains(t, out, "1.5h")
}

func TestConsole_NotifyClosed_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.NotifyClosed(context.Background(), []domain.ClosedTrade{
		makeTrade("M", 1, domain.ExitTimeout),
	}))
	assert.Contains(t, buf.String(), "CLOSE YES M")
	assert.Contains(t, buf.String(), "(timeout)")
}

func TestConsole_NotifyClosed_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)
	require.NoError(t, n.NotifyClosed(context.Background(), nil))
	assert.Empty(t, buf.String())
}

func TestConsole_LongMarketTruncated(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.NotifyClosed(context.Background(), []domain.ClosedTrade{
		makeTrade(strings.Repeat("A", 50), 1, domain.ExitTimeout),
	}))
	assert.Contains(t, buf.String(), "...")
}

func TestConsole_PrintReport(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	trades := []domain.ClosedTrade{
		makeTrade("A", 10, domain.ExitTakeProfit),
		makeTrade("B", -5, domain.ExitStopLoss),
		makeTrade("C", 4, domain.ExitSettlement),
	}
	w := domain.NewWallet(1000)
	for _, tr := range trades {
		w.Apply(tr.PnL)
	}
	n.PrintReport(domain.Performance(trades, 1000), w)

	out := buf.String()
	assert.Contains(t, out, "PAPER TRADING REPORT (3 trades)")
	assert.Contains(t, out, "$1009.00")
	assert.Contains(t, out, "66.7%")
	assert.Contains(t, out, "stop_loss")
	assert.Contains(t, out, "need 10+ trades")
}

func TestConsole_PrintReport_Overfit(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	var trades []domain.ClosedTrade
	w := domain.NewWallet(1000)
	for i := range 20 {
		pnl := -5.0
		if (i < 16 && i%4 < 3) || i == 16 {
			pnl = 10
		}
		tr := makeTrade(fmt.Sprintf("M%d", i), pnl, domain.ExitTakeProfit)
		trades = append(trades, tr)
		w.Apply(pnl)
	}
	n.PrintReport(domain.Performance(trades, 1000), w)

	out := buf.String()
	assert.Contains(t, out, "16 / 4 trades")
	assert.Contains(t, out, "75.0% / 25.0%")
	assert.Contains(t, out, "OVERFIT (win rate drop 50.0 pts)")
}

func TestConsole_PrintReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, true).PrintReport(domain.PerformanceReport{}, domain.NewWallet(1000))
	assert.Contains(t, buf.String(), "No closed trades yet")
}

func TestConsole_PrintCycle(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, true).PrintCycle(domain.CycleSummary{
		At: at, Ticks: 8, Signals: 8, Actionable: 1, Opened: 1, Ambiguous: 1, Balance: 1002.5,
		Denied: map[domain.DenyReason]int{domain.DenyCooldown: 2},
	}, 3)

	out := buf.String()
	assert.Contains(t, out, "8 ticks")
	assert.Contains(t, out, "bal $1002.50")
	assert.Contains(t, out, "ambiguous settlement")
	assert.Contains(t, out, "market cooldown:2")
}
