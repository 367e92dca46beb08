package domain

import "math"

// DefaultTrainRatio es la fracción de trades (los más antiguos) usada como train.
const DefaultTrainRatio = 0.8

// MinValidationTrades es el mínimo de trades para separar train y test.
const MinValidationTrades = 10

// SplitStats son las métricas de una de las dos mitades de la validación.
type SplitStats struct {
	Trades       int
	WinRate      float64
	Sharpe       float64
	ProfitFactor float64 // +Inf sin pérdidas
}

// Validation compara el rendimiento de los trades antiguos (train) con el de
// los recientes (test) para detectar un patrón sobreajustado.
type Validation struct {
	Train      SplitStats
	Test       SplitStats
	Sufficient bool // false con menos de MinValidationTrades trades
	Overfit    bool
}

// WinRateDrop devuelve la caída de win rate de train a test.
func (v Validation) WinRateDrop() float64 {
	return v.Train.WinRate - v.Test.WinRate
}

// CrossValidate separa los trades, en orden de cierre, en train (los primeros
// trainRatio) y test (el resto). Hay sobreajuste si el win rate cae más de 20
// puntos o si un Sharpe de train > 0.5 cae a menos de la mitad en test.
// Un trainRatio fuera de (0, 1) usa DefaultTrainRatio.
func CrossValidate(trades []ClosedTrade, trainRatio float64) Validation {
	if len(trades) < MinValidationTrades {
		return Validation{}
	}
	if !(trainRatio > 0 && trainRatio < 1) {
		trainRatio = DefaultTrainRatio
	}
	n := int(float64(len(trades)) * trainRatio)
	n = max(1, min(n, len(trades)-1))

	v := Validation{
		Train:      splitStats(trades[:n]),
		Test:       splitStats(trades[n:]),
		Sufficient: true,
	}
	var sharpeRatio float64
	if v.Train.Sharpe > 0 {
		sharpeRatio = v.Test.Sharpe / v.Train.Sharpe
	}
	v.Overfit = v.WinRateDrop() > 0.20 || (v.Train.Sharpe > 0.5 && sharpeRatio < 0.5)
	return v
}

func splitStats(trades []ClosedTrade) SplitStats {
	s := SplitStats{Trades: len(trades)}
	returns := make([]float64, 0, len(trades))
	var wins int
	var grossWins, grossLosses float64
	for _, t := range trades {
		if t.Win() {
			wins++
			grossWins += t.PnL
		} else {
			grossLosses += -t.PnL
		}
		if t.Size > 0 {
			returns = append(returns, t.PnL/t.Size)
		}
	}
	s.WinRate = float64(wins) / float64(len(trades))
	s.Sharpe = sharpe(returns)
	switch {
	case grossLosses > 0:
		s.ProfitFactor = grossWins / grossLosses
	case grossWins > 0:
		s.ProfitFactor = math.Inf(1)
	}
	return s
}
