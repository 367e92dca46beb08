// Package signal convierte fair values en señales de trading con edge neto,
// score compuesto y tamaño Kelly.
package signal

import (
	"math"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Config controla el SignalGenerator.
type Config struct {
	FeePerSide       float64 // fee por lado sobre el coste real del lado
	MinEdge          float64 // edge neto mínimo para ser accionable
	KellyMultiplier  float64 // fracción de Kelly (p.ej. 0.25)
	MaxKellyFraction float64 // techo de la fracción resultante
}

// Input reúne lo que el generador necesita de un tick.
type Input struct {
	Contract      domain.Contract
	Estimate      domain.EnsembleEstimate
	HasEstimate   bool
	Score         Score
	Divergence    float64
	HasDivergence bool
	Now           time.Time
}

// Generator produce una Signal por contrato y tick. Es determinista:
// mismos inputs, misma señal.
type Generator struct {
	cfg    Config
	scorer *Scorer
}

// NewGenerator crea un generador que aplica el gate de score del scorer.
func NewGenerator(cfg Config, scorer *Scorer) *Generator {
	return &Generator{cfg: cfg, scorer: scorer}
}

// Generate evalúa dirección, edge bruto, edge neto de fees y spread, gate
// de score y Kelly. Una señal no accionable siempre lleva Reason.
func (g *Generator) Generate(in Input) domain.Signal {
	c := in.Contract
	sig := domain.Signal{
		MarketID:      c.MarketID,
		Score:         in.Score.Total,
		Divergence:    in.Divergence,
		HasDivergence: in.HasDivergence,
		GeneratedAt:   in.Now,
	}

	if err := c.Validate(); err != nil {
		sig.Reason = domain.ReasonInvalidQuote
		return sig
	}
	if !in.Now.Before(c.Expiry) {
		sig.Reason = domain.ReasonExpired
		return sig
	}
	if !in.HasEstimate {
		sig.Reason = domain.ReasonNoFairValue
		return sig
	}

	fv := in.Estimate.Probability
	bid, ask := c.Bid.Value, c.Ask.Value
	sig.FairValue = fv

	var cost, winProb float64
	switch {
	case fv > ask:
		sig.Direction = domain.DirectionYes
		sig.RawEdge = fv - ask
		sig.AssumedEntryPrice = ask
		cost, winProb = ask, fv
	case fv < bid:
		sig.Direction = domain.DirectionNo
		sig.RawEdge = bid - fv
		sig.AssumedEntryPrice = bid
		cost, winProb = 1-bid, 1-fv
	default:
		sig.Reason = domain.ReasonInsideSpread
		return sig
	}

	roundTripFee := g.cfg.FeePerSide * 2 * cost
	sig.NetEdge = sig.RawEdge - roundTripFee - c.Spread()
	sig.KellyFraction = KellyFraction(winProb, cost, g.cfg.KellyMultiplier, g.cfg.MaxKellyFraction)

	if sig.NetEdge < g.cfg.MinEdge {
		sig.Reason = domain.ReasonEdgeTooSmall
		return sig
	}
	if g.scorer != nil {
		if ok, tooLow := g.scorer.Gate(in.Score); !ok {
			if tooLow {
				sig.Reason = domain.ReasonScoreTooLow
			} else {
				sig.Reason = domain.ReasonScoreTooHigh
			}
			return sig
		}
	}
	sig.Actionable = true
	return sig
}

// KellyFraction devuelve f·((p·(b+1) − 1) / b), con b = (1 − cost) / cost las
// odds decimales netas del lado comprado a precio cost, acotado a [0, ceiling].
func KellyFraction(p, cost, multiplier, ceiling float64) float64 {
	if !(cost > 0) || !(cost < 1) || math.IsNaN(p) {
		return 0
	}
	b := (1 - cost) / cost
	k := multiplier * (p*(b+1) - 1) / b
	if !(k > 0) {
		return 0
	}
	if k > ceiling {
		return ceiling
	}
	return k
}
