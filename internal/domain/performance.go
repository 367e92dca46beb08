package domain

import (
	"math"
	"sort"
)

// PerformanceReport resume una serie de trades cerrados.
type PerformanceReport struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	GrossWins    float64
	GrossLosses  float64 // positivo
	AvgWin       float64
	AvgLoss      float64 // positivo
	ProfitFactor float64 // GrossWins / GrossLosses (+Inf sin pérdidas)
	Expectancy   float64 // P&L esperado por trade
	Sharpe       float64 // por trade, risk-free 0
	Sortino      float64
	MaxDrawdown  float64 // fracción del pico de la curva de equity
	Confidence   float64 // 0-1
	ByExit       map[ExitReason]int
	Validation   Validation // train/test con DefaultTrainRatio
}

// Performance calcula el informe sobre los trades en orden de cierre.
// Los retornos por trade son pnl / size.
func Performance(trades []ClosedTrade, initialBalance float64) PerformanceReport {
	r := PerformanceReport{ByExit: make(map[ExitReason]int)}
	if len(trades) == 0 {
		return r
	}

	returns := make([]float64, 0, len(trades))
	equity := initialBalance
	peak := initialBalance
	for _, t := range trades {
		r.Trades++
		r.TotalPnL += t.PnL
		r.ByExit[t.ExitReason]++
		if t.Win() {
			r.Wins++
			r.GrossWins += t.PnL
		} else {
			r.Losses++
			r.GrossLosses += -t.PnL
		}
		if t.Size > 0 {
			returns = append(returns, t.PnL/t.Size)
		}

		equity += t.PnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			r.MaxDrawdown = math.Max(r.MaxDrawdown, (peak-equity)/peak)
		}
	}

	r.WinRate = float64(r.Wins) / float64(r.Trades)
	if r.Wins > 0 {
		r.AvgWin = r.GrossWins / float64(r.Wins)
	}
	if r.Losses > 0 {
		r.AvgLoss = r.GrossLosses / float64(r.Losses)
	}
	switch {
	case r.GrossLosses > 0:
		r.ProfitFactor = r.GrossWins / r.GrossLosses
	case r.GrossWins > 0:
		r.ProfitFactor = math.Inf(1)
	}
	r.Expectancy = r.WinRate*r.AvgWin - (1-r.WinRate)*r.AvgLoss
	r.Sharpe = sharpe(returns)
	r.Sortino = sortino(returns)
	r.Confidence = confidenceScore(r)
	r.Validation = CrossValidate(trades, DefaultTrainRatio)
	return r
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	var variance float64
	for _, r := range returns {
		variance += (r - m) * (r - m)
	}
	sd := math.Sqrt(variance / float64(len(returns)))
	if sd == 0 {
		return 0
	}
	return m / sd
}

func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var downside float64
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}
	dd := math.Sqrt(downside / float64(len(returns)))
	if dd == 0 {
		return 0
	}
	return mean(returns) / dd
}

// confidenceScore: 30+ trades = muestra completa, win rate sobre base 35%,
// profit factor 1.5 = completo. Pesos 40/30/30.
func confidenceScore(r PerformanceReport) float64 {
	sample := math.Min(1, float64(r.Trades)/30)
	wr := math.Min(1, math.Max(0, r.WinRate-0.35)/0.35)
	pf := 1.0
	if !math.IsInf(r.ProfitFactor, 1) {
		pf = math.Min(1, r.ProfitFactor/1.5)
	}
	return sample*0.4 + wr*0.3 + pf*0.3
}

// SanitizeTrades descarta trades que no deben contar en las estadísticas:
// registros vacíos (entry == exit sin P&L ni fees), duplicados
// (mismo mercado, entrada y salida) y P&L fuera de [-size, 10×size].
// Devuelve los trades ordenados por hora de cierre.
func SanitizeTrades(trades []ClosedTrade) []ClosedTrade {
	type key struct {
		market      string
		entry, exit int64
	}
	seen := make(map[key]bool, len(trades))
	out := make([]ClosedTrade, 0, len(trades))
	for _, t := range trades {
		if t.ExitPrice == t.EntryPrice && t.PnL == 0 && t.Fees == 0 {
			continue
		}
		if t.PnL < -t.Size || t.PnL > 10*t.Size {
			continue
		}
		k := key{t.MarketID, t.EntryTime.UnixNano(), t.ExitTime.UnixNano()}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExitTime.Before(out[j].ExitTime)
	})
	return out
}
