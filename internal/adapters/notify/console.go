package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y ports.SignalSink escribiendo a un io.Writer.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyClosed imprime los trades cerrados del ciclo.
func (c *Console) NotifyClosed(_ context.Context, trades []domain.ClosedTrade) error {
	if len(trades) == 0 {
		return nil
	}
	if !c.table {
		for _, t := range trades {
			fmt.Fprintf(c.out, "[%s] CLOSE %s %s %s @%.3f → %.3f pnl %s (%s)\n",
				t.ExitTime.Format("15:04:05"), t.Direction, compactName(t.MarketID, 28),
				fmt.Sprintf("$%.2f", t.Size), t.EntryPrice, t.ExitPrice, signedUSD(t.PnL), t.ExitReason)
		}
		return nil
	}
	c.PrintTrades(trades)
	return nil
}

// Publish imprime las señales accionables en una línea cada una.
func (c *Console) Publish(_ context.Context, signals []domain.Signal) error {
	for _, s := range signals {
		fmt.Fprintf(c.out, "[%s] SIGNAL %s %s fv %.3f entry %.3f edge %.3f net %.3f score %.0f kelly %.1f%%\n",
			s.GeneratedAt.Format("15:04:05"), s.Direction, compactName(s.MarketID, 28),
			s.FairValue, s.AssumedEntryPrice, s.RawEdge, s.NetEdge, s.Score, s.KellyFraction*100)
	}
	return nil
}

// PrintTrades imprime una tabla de trades cerrados.
func (c *Console) PrintTrades(trades []domain.ClosedTrade) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Dir", "Size", "Entry", "Exit", "Reason", "Hold", "Fees", "PnL")
	for i, t := range trades {
		table.Append(
			fmt.Sprintf("%d", i+1),
			compactName(t.MarketID, 28),
			string(t.Direction),
			fmt.Sprintf("$%.2f", t.Size),
			fmt.Sprintf("%.3f", t.EntryPrice),
			fmt.Sprintf("%.3f", t.ExitPrice),
			string(t.ExitReason),
			formatHold(t.Hold),
			fmt.Sprintf("$%.4f", t.Fees),
			signedUSD(t.PnL),
		)
	}
	table.Render()
}

// PrintOpen imprime las posiciones abiertas o en closing.
func (c *Console) PrintOpen(positions []domain.Position, now time.Time) {
	if len(positions) == 0 {
		fmt.Fprintln(c.out, "  no open positions")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Dir", "Size", "Entry", "TP", "SL", "FV", "Held", "Status")
	for _, p := range positions {
		table.Append(
			compactName(p.MarketID, 28),
			string(p.Direction),
			fmt.Sprintf("$%.2f", p.Size),
			fmt.Sprintf("%.3f", p.EntryPrice),
			fmt.Sprintf("%.3f", p.TakeProfitPrice),
			fmt.Sprintf("%.3f", p.StopLossPrice),
			fmt.Sprintf("%.3f", p.FairValue),
			formatHold(p.Held(now)),
			p.Status.String(),
		)
	}
	table.Render()
}

// PrintCycle imprime el estado compacto de un ciclo.
func (c *Console) PrintCycle(s domain.CycleSummary, open int) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s][PAPER] %d ticks | %d signals (%d actionable) | +%d open | %d closed | %d pos | bal $%.2f",
		s.At.Format("15:04:05"), s.Ticks, s.Signals, s.Actionable, s.Opened, s.Closed, open, s.Balance)
	if s.Ambiguous > 0 {
		fmt.Fprintf(&sb, " | !! %d ambiguous settlement", s.Ambiguous)
	}
	if len(s.Denied) > 0 {
		reasons := make([]string, 0, len(s.Denied))
		for r, n := range s.Denied {
			reasons = append(reasons, fmt.Sprintf("%s:%d", r, n))
		}
		sort.Strings(reasons)
		fmt.Fprintf(&sb, "\n  >> denied %s", strings.Join(reasons, ", "))
	}
	fmt.Fprintln(c.out, sb.String())
}

// PrintReport imprime el informe de rendimiento del paper trading.
func (c *Console) PrintReport(r domain.PerformanceReport, w domain.Wallet) {
	if r.Trades == 0 {
		fmt.Fprintln(c.out, "\n  No closed trades yet. Run the paper loop or a replay first.")
		return
	}

	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  PAPER TRADING REPORT (%d trades)\n", r.Trades)
	fmt.Fprintf(c.out, "========================================================\n\n")

	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Metric", "Value")
	tbl.Append("Balance", fmt.Sprintf("$%.2f (initial $%.2f)", w.Balance, w.InitialBalance))
	tbl.Append("Total PnL", signedUSD(r.TotalPnL))
	tbl.Append("Win rate", fmt.Sprintf("%.1f%% (%dW / %dL)", r.WinRate*100, r.Wins, r.Losses))
	tbl.Append("Avg win / loss", fmt.Sprintf("$%.2f / $%.2f", r.AvgWin, r.AvgLoss))
	tbl.Append("Profit factor", formatRatio(r.ProfitFactor))
	tbl.Append("Expectancy", signedUSD(r.Expectancy))
	tbl.Append("Sharpe / Sortino", fmt.Sprintf("%s / %s", formatRatio(r.Sharpe), formatRatio(r.Sortino)))
	tbl.Append("Max drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdown*100))
	tbl.Append("Confidence", fmt.Sprintf("%.0f%%", r.Confidence*100))
	if v := r.Validation; v.Sufficient {
		tbl.Append("Train / test", fmt.Sprintf("%d / %d trades", v.Train.Trades, v.Test.Trades))
		tbl.Append("Win rate train / test", fmt.Sprintf("%.1f%% / %.1f%%", v.Train.WinRate*100, v.Test.WinRate*100))
		tbl.Append("Sharpe train / test", fmt.Sprintf("%s / %s", formatRatio(v.Train.Sharpe), formatRatio(v.Test.Sharpe)))
		tbl.Append("PF train / test", fmt.Sprintf("%s / %s", formatRatio(v.Train.ProfitFactor), formatRatio(v.Test.ProfitFactor)))
	}
	tbl.Render()

	switch v := r.Validation; {
	case !v.Sufficient:
		fmt.Fprintf(c.out, "\n  Validation: need %d+ trades for a train/test split\n", domain.MinValidationTrades)
	case v.Overfit:
		fmt.Fprintf(c.out, "\n  !! Validation: OVERFIT (win rate drop %.1f pts)\n", v.WinRateDrop()*100)
	default:
		fmt.Fprintf(c.out, "\n  Validation: consistent out of sample\n")
	}

	if len(r.ByExit) > 0 {
		reasons := make([]string, 0, len(r.ByExit))
		for reason := range r.ByExit {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)

		fmt.Fprintf(c.out, "\n  Exits:\n")
		for _, reason := range reasons {
			fmt.Fprintf(c.out, "    %-12s %d\n", reason, r.ByExit[domain.ExitReason(reason)])
		}
	}
}

func compactName(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func signedUSD(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatHold(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
