package position

import (
	"math"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// MarketView es lo que el tick actual sabe de un mercado con posición.
type MarketView struct {
	Contract      domain.Contract
	Divergence    float64 // divergencia cross-market actual
	HasDivergence bool
}

// exitDecision es el resultado de evaluar una posición en un tick.
type exitDecision struct {
	reason  domain.ExitReason
	settled bool
	payoff  float64 // sólo si settled
}

// decideExit es la única función que decide la salida de una posición.
// Orden: settlement, take-profit, stop-loss (con decay), convergencia, timeout.
// Devuelve ErrSettlementAmbiguous si el contrato venció sin payoff claro.
// Con fresh=false la cotización es de un tick anterior: sólo cuentan el
// settlement y el timeout, que además libera un vencido ambiguo.
func (m *Manager) decideExit(p domain.Position, v MarketView, fresh bool, now time.Time) (exitDecision, bool, error) {
	timedOut := p.MaxHold > 0 && p.Held(now) >= p.MaxHold
	if !now.Before(p.Expiry) {
		payoff, err := m.settle.Classify(v.Contract)
		if err != nil {
			if !fresh && timedOut {
				return exitDecision{reason: domain.ExitTimeout}, true, nil
			}
			return exitDecision{}, false, err
		}
		return exitDecision{reason: domain.ExitSettlement, settled: true, payoff: payoff}, true, nil
	}

	c := v.Contract
	if fresh && c.Bid.Known && c.Ask.Known {
		// precio al que se podría salir, en convención YES
		mark := c.Bid.Value
		if p.Direction == domain.DirectionNo {
			mark = c.Ask.Value
		}
		if touchedTakeProfit(p, mark) {
			return exitDecision{reason: domain.ExitTakeProfit}, true, nil
		}
		if touchedStop(p, mark, m.stopLevel(p, now)) {
			return exitDecision{reason: domain.ExitStopLoss}, true, nil
		}
	}

	if p.TracksDiverge && v.HasDivergence && math.Abs(v.Divergence) < m.cfg.ConvergenceTarget {
		return exitDecision{reason: domain.ExitConvergence}, true, nil
	}
	if timedOut {
		return exitDecision{reason: domain.ExitTimeout}, true, nil
	}
	return exitDecision{}, false, nil
}

func touchedTakeProfit(p domain.Position, mark float64) bool {
	if p.Direction == domain.DirectionNo {
		return mark <= p.TakeProfitPrice
	}
	return mark >= p.TakeProfitPrice
}

func touchedStop(p domain.Position, mark, stop float64) bool {
	if p.Direction == domain.DirectionNo {
		return mark >= stop
	}
	return mark <= stop
}

// stopLevel devuelve el stop vigente. Pasado StopDecayStart del max hold, la
// distancia al precio de entrada se reduce linealmente hasta 0 en MaxHold.
func (m *Manager) stopLevel(p domain.Position, now time.Time) float64 {
	width := math.Abs(p.EntryPrice - p.StopLossPrice)
	if p.MaxHold > 0 {
		frac := float64(p.Held(now)) / float64(p.MaxHold)
		if start := m.cfg.StopDecayStart; start < 1 && frac > start {
			width *= math.Max(0, (1-frac)/(1-start))
		}
	}
	if p.Direction == domain.DirectionNo {
		return p.EntryPrice + width
	}
	return p.EntryPrice - width
}

// targets calcula take-profit y stop-loss en convención YES para una
// entrada al precio entry con fair value fv.
func (m *Manager) targets(dir domain.Direction, entry, fv float64) (tp, sl float64) {
	buf, width := m.cfg.TakeProfitBuffer, m.cfg.StopLossWidth
	if dir == domain.DirectionNo {
		tp = fv + buf
		if tp >= entry {
			tp = entry - buf
		}
		return tp, entry + width
	}
	tp = fv - buf
	if tp <= entry {
		tp = entry + buf
	}
	return tp, entry - width
}
