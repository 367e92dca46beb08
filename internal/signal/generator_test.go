package signal

import (
	"testing"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func contract(bid, ask float64) domain.Contract {
	return domain.Contract{
		MarketID: "BTC-97K",
		Asset:    "BTC",
		Strike:   97000,
		Expiry:   now.Add(12 * time.Hour),
		Bid:      domain.NewQuote(bid),
		Ask:      domain.NewQuote(ask),
	}
}

func ensemble(p float64) domain.EnsembleEstimate {
	return domain.EnsembleEstimate{Probability: p}
}

func newGen(minEdge float64) *Generator {
	return NewGenerator(Config{
		FeePerSide:       0.0006,
		MinEdge:          minEdge,
		KellyMultiplier:  0.25,
		MaxKellyFraction: 0.10,
	}, NewScorer(ScoreConfig{MinScore: 0, MaxScore: 95}))
}

func TestGenerate_BuyYes(t *testing.T) {
	sig := newGen(0.03).Generate(Input{Contract: contract(0.43, 0.45), Estimate: ensemble(0.60), HasEstimate: true, Now: now})

	require.True(t, sig.Actionable, sig.Reason)
	assert.Equal(t, domain.DirectionYes, sig.Direction)
	assert.InDelta(t, 0.15, sig.RawEdge, 1e-12)
	// net = 0.15 - 0.0006·2·0.45 - 0.02
	assert.InDelta(t, 0.15-0.00054-0.02, sig.NetEdge, 1e-12)
	assert.Equal(t, 0.45, sig.AssumedEntryPrice)
	assert.Greater(t, sig.KellyFraction, 0.0)
	assert.Empty(t, sig.Reason)
}

func TestGenerate_BuyNo_UsesNoCostBasis(t *testing.T) {
	sig := newGen(0.03).Generate(Input{Contract: contract(0.70, 0.72), Estimate: ensemble(0.50), HasEstimate: true, Now: now})

	require.True(t, sig.Actionable)
	assert.Equal(t, domain.DirectionNo, sig.Direction)
	assert.InDelta(t, 0.20, sig.RawEdge, 1e-12)
	assert.InDelta(t, 0.20-0.0006*2*0.30-0.02, sig.NetEdge, 1e-12)
	assert.Equal(t, 0.70, sig.AssumedEntryPrice, "entry expressed on the YES side")
}

func TestGenerate_InsideSpread(t *testing.T) {
	sig := newGen(0.03).Generate(Input{Contract: contract(0.40, 0.50), Estimate: ensemble(0.45), HasEstimate: true, Now: now})
	assert.False(t, sig.Actionable)
	assert.Equal(t, domain.DirectionNone, sig.Direction)
	assert.Equal(t, domain.ReasonInsideSpread, sig.Reason)
}

func TestGenerate_EdgeTooSmall(t *testing.T) {
	sig := newGen(0.05).Generate(Input{Contract: contract(0.43, 0.45), Estimate: ensemble(0.48), HasEstimate: true, Now: now})
	assert.False(t, sig.Actionable)
	assert.Equal(t, domain.DirectionYes, sig.Direction)
	assert.Equal(t, domain.ReasonEdgeTooSmall, sig.Reason)
}

func TestGenerate_NoFairValue(t *testing.T) {
	sig := newGen(0.03).Generate(Input{Contract: contract(0.43, 0.45), Now: now})
	assert.False(t, sig.Actionable)
	assert.Equal(t, domain.ReasonNoFairValue, sig.Reason)
	assert.Zero(t, sig.FairValue)
}

func TestGenerate_InvalidQuoteAndExpired(t *testing.T) {
	c := contract(0.43, 0.45)
	c.Ask = domain.Quote{}
	sig := newGen(0.03).Generate(Input{Contract: c, Estimate: ensemble(0.9), HasEstimate: true, Now: now})
	assert.Equal(t, domain.ReasonInvalidQuote, sig.Reason)

	sig = newGen(0.03).Generate(Input{Contract: contract(0.43, 0.45), Estimate: ensemble(0.9), HasEstimate: true, Now: now.Add(12 * time.Hour)})
	assert.Equal(t, domain.ReasonExpired, sig.Reason)
}

func TestGenerate_ScoreGate(t *testing.T) {
	g := NewGenerator(Config{FeePerSide: 0.0006, MinEdge: 0.01, KellyMultiplier: 0.25, MaxKellyFraction: 0.1},
		NewScorer(ScoreConfig{MinScore: 30, MaxScore: 95}))
	in := Input{Contract: contract(0.43, 0.45), Estimate: ensemble(0.6), HasEstimate: true, Now: now}

	in.Score = Score{Total: 10}
	assert.Equal(t, domain.ReasonScoreTooLow, g.Generate(in).Reason)

	in.Score = Score{Total: 99}
	assert.Equal(t, domain.ReasonScoreTooHigh, g.Generate(in).Reason)

	in.Score = Score{Total: 60}
	assert.True(t, g.Generate(in).Actionable)
}

func TestGenerate_PricerScenario(t *testing.T) {
	// spot 98000, strike 97000, 12h, vol 0.50, ask 0.45
	q, err := pricing.NewPricer(true).Price(98000, 97000, 12, 0.50)
	require.NoError(t, err)
	require.Greater(t, q.Probability, 0.5)
	require.Less(t, q.Probability, 1.0)

	minEdge := 0.05
	sig := newGen(minEdge).Generate(Input{Contract: contract(0.44, 0.45), Estimate: ensemble(q.Probability), HasEstimate: true, Now: now})
	assert.Equal(t, domain.DirectionYes, sig.Direction)
	require.GreaterOrEqual(t, sig.NetEdge, minEdge)
	assert.True(t, sig.Actionable)
}

func TestKellyFraction(t *testing.T) {
	// p=0.6, cost=0.5 → b=1, full Kelly = 0.2, cuarto de Kelly = 0.05
	assert.InDelta(t, 0.05, KellyFraction(0.6, 0.5, 0.25, 1), 1e-12)
	assert.Equal(t, 0.03, KellyFraction(0.6, 0.5, 0.25, 0.03), "clamped to ceiling")
	assert.Equal(t, 0.0, KellyFraction(0.4, 0.5, 0.25, 1), "negative edge → 0")
	assert.Equal(t, 0.0, KellyFraction(0.6, 0, 0.25, 1))
	assert.Equal(t, 0.0, KellyFraction(0.6, 1, 0.25, 1))
}

func TestGenerate_Deterministic(t *testing.T) {
	g := newGen(0.03)
	in := Input{Contract: contract(0.43, 0.45), Estimate: ensemble(0.6), HasEstimate: true, Now: now}
	assert.Equal(t, g.Generate(in), g.Generate(in))
}
