package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/edgebot/config"
	"github.com/alejandrodnm/edgebot/internal/adapters/storage"
	"github.com/alejandrodnm/edgebot/internal/application/engine"
	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/metrics"
)

var (
	t0     = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	expiry = t0.Add(12 * time.Hour)
)

type captureSink struct{ got []domain.Signal }

func (c *captureSink) Publish(_ context.Context, s []domain.Signal) error {
	c.got = append(c.got, s...)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Score.MinScore = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func newEngine(t *testing.T) (*Engine, *storage.Memory, *captureSink) {
	t.Helper()
	store := storage.NewMemory()
	core, err := engine.BuildCore(testConfig(t), store)
	require.NoError(t, err)
	sink := &captureSink{}
	return New(core, Options{Sink: sink, Cycles: store, Metrics: metrics.NewRecorder()}), store, sink
}

// ladder devuelve una escalera BTC con las masas dadas para los floors
// 96000, 97000, 98000 y 99000.
func ladder(masses ...float64) domain.Tick {
	var brackets []domain.Bracket
	for i, m := range masses {
		floor := 96000 + float64(i)*1000
		brackets = append(brackets, domain.Bracket{
			MarketID:    "KXBTC-B" + string(rune('A'+i)),
			FloorStrike: floor,
			CapStrike:   floor + 1000,
			StrikeType:  domain.StrikeBetween,
			Bid:         domain.NewQuote(m - 0.01),
			Ask:         domain.NewQuote(m + 0.01),
			Mid:         domain.NewQuote(m),
		})
	}
	return domain.Tick{Asset: "BTC", Expiry: expiry, Brackets: brackets}
}

func binary(bid, ask float64, at time.Time) domain.Tick {
	return domain.Tick{Contract: &domain.Contract{
		MarketID:      "KXBTCD-97000",
		Venue:         "kalshi",
		Asset:         "BTC",
		Strike:        97000,
		Expiry:        expiry,
		Bid:           domain.NewQuote(bid),
		Ask:           domain.NewQuote(ask),
		BidSize:       10000,
		AskSize:       10000,
		LastTradeTime: at,
	}}
}

// P(>97000) = 0.80 en la curva.
func entryBatch() domain.TickBatch {
	return domain.TickBatch{Time: t0, Ticks: []domain.Tick{binary(0.60, 0.62, t0), ladder(0.20, 0.30, 0.30, 0.20)}}
}

func TestProcessBatch_OpensOnSyntheticEdge(t *testing.T) {
	e, store, sink := newEngine(t)
	ctx := context.Background()

	res, err := e.ProcessBatch(ctx, entryBatch())
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)

	sig := res.Signals[0]
	assert.True(t, sig.Actionable, "reason: %s", sig.Reason)
	assert.Equal(t, domain.DirectionYes, sig.Direction)
	assert.InDelta(t, 0.80, sig.FairValue, 1e-9)
	assert.InDelta(t, -0.19, sig.Divergence, 1e-9)

	require.Len(t, res.Opened, 1)
	p := res.Opened[0]
	assert.InDelta(t, 50, p.Size, 1e-9) // 1000 · min(kelly 0.10, 0.05)
	assert.InDelta(t, 0.62, p.EntryPrice, 1e-3)
	assert.InDelta(t, 0.78, p.TakeProfitPrice, 1e-9)
	assert.True(t, p.TracksDiverge)

	open, err := store.GetOpenTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Len(t, sink.got, 1)

	cycles := store.Cycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, 1, cycles[0].Opened)
	assert.Equal(t, 2, cycles[0].Ticks)
}

func TestProcessBatch_ExitsBeforeEntries(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.ProcessBatch(ctx, entryBatch())
	require.NoError(t, err)

	// el bid toca el take-profit y la curva sigue viendo edge YES
	t1 := t0.Add(time.Minute)
	res, err := e.ProcessBatch(ctx, domain.TickBatch{Time: t1, Ticks: []domain.Tick{
		ladder(0.05, 0.45, 0.30, 0.20),
		binary(0.80, 0.82, t1),
	}})
	require.NoError(t, err)

	require.Len(t, res.Closed, 1)
	assert.Equal(t, domain.ExitTakeProfit, res.Closed[0].ExitReason)
	assert.Greater(t, res.Closed[0].PnL, 0.0)

	// con las entradas antes que las salidas sería DenyDuplicate
	require.Len(t, res.Signals, 1)
	assert.True(t, res.Signals[0].Actionable)
	assert.Equal(t, 1, res.Summary.Denied[domain.DenyCooldown])
	assert.Zero(t, res.Summary.Denied[domain.DenyDuplicate])
	assert.Empty(t, res.Opened)
	assert.Empty(t, e.Core().Positions.Open())
}

func TestProcessBatch_NoFairValue(t *testing.T) {
	e, _, _ := newEngine(t)

	res, err := e.ProcessBatch(context.Background(), domain.TickBatch{Time: t0, Ticks: []domain.Tick{binary(0.60, 0.62, t0)}})
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, domain.ReasonNoFairValue, res.Signals[0].Reason)
	assert.Empty(t, res.Opened)
}

func TestProcessBatch_InvalidQuoteNeverPriced(t *testing.T) {
	e, _, _ := newEngine(t)
	tick := binary(0.60, 0.62, t0)
	tick.Contract.Ask = domain.Quote{}

	res, err := e.ProcessBatch(context.Background(), domain.TickBatch{Time: t0, Ticks: []domain.Tick{ladder(0.20, 0.30, 0.30, 0.20), tick}})
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, domain.ReasonInvalidQuote, res.Signals[0].Reason)
	assert.False(t, res.Signals[0].HasDivergence)
}

func TestProcessBatch_StatisticalFromSpots(t *testing.T) {
	e, _, _ := newEngine(t)

	var spots []domain.SpotSample
	for i := range 30 {
		px := 100000.0
		if i%2 == 1 {
			px += 50
		}
		spots = append(spots, domain.SpotSample{Asset: "BTC", Price: px, Timestamp: t0.Add(time.Duration(i-30) * time.Minute)})
	}
	res, err := e.ProcessBatch(context.Background(), domain.TickBatch{
		Time:  t0,
		Spots: spots,
		Ticks: []domain.Tick{binary(0.60, 0.62, t0)},
	})
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)

	sig := res.Signals[0]
	assert.NotEqual(t, domain.ReasonNoFairValue, sig.Reason)
	assert.Greater(t, sig.FairValue, 0.9)
	assert.Equal(t, domain.DirectionYes, sig.Direction)
	assert.False(t, sig.HasDivergence)
}

func TestForceClose_StreamEnd(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.ProcessBatch(ctx, entryBatch())
	require.NoError(t, err)

	res, err := e.ForceClose(ctx, t0.Add(time.Hour), domain.ExitStreamEnd)
	require.NoError(t, err)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, domain.ExitStreamEnd, res.Closed[0].ExitReason)
	// sale por el bid del último libro conocido
	assert.InDelta(t, 0.60, res.Closed[0].ExitPrice, 1e-3)
	assert.Empty(t, e.Core().Positions.Open())

	closed, err := store.GetClosedTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, closed, 1)
	assert.InDelta(t, 1000+res.Closed[0].PnL, e.Core().Positions.Wallet().Balance, 1e-9)
}

func TestProcessBatch_Deterministic(t *testing.T) {
	run := func() ([]domain.Signal, []domain.ClosedTrade) {
		e, _, _ := newEngine(t)
		ctx := context.Background()
		var sigs []domain.Signal
		var closed []domain.ClosedTrade
		batches := []domain.TickBatch{
			entryBatch(),
			{Time: t0.Add(time.Minute), Ticks: []domain.Tick{ladder(0.05, 0.45, 0.30, 0.20), binary(0.80, 0.82, t0)}},
			{Time: t0.Add(20 * time.Minute), Ticks: []domain.Tick{binary(0.60, 0.62, t0), ladder(0.20, 0.30, 0.30, 0.20)}},
		}
		for _, b := range batches {
			res, err := e.ProcessBatch(ctx, b)
			require.NoError(t, err)
			sigs = append(sigs, res.Signals...)
			closed = append(closed, res.Closed...)
		}
		res, err := e.ForceClose(ctx, t0.Add(time.Hour), domain.ExitStreamEnd)
		require.NoError(t, err)
		return sigs, append(closed, res.Closed...)
	}

	s1, c1 := run()
	s2, c2 := run()
	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
	assert.Len(t, c1, 2)
}

type fakeMarkets struct {
	ticks []domain.Tick
	err   error
}

func (f fakeMarkets) FetchTicks(context.Context) ([]domain.Tick, error) { return f.ticks, f.err }

type fakeSpots map[string]float64

func (f fakeSpots) FetchSpot(_ context.Context, asset string) (domain.SpotSample, error) {
	px, ok := f[asset]
	if !ok {
		return domain.SpotSample{}, domain.ErrNotFound
	}
	return domain.SpotSample{Asset: asset, Price: px, Timestamp: t0}, nil
}

func TestPoller_Next(t *testing.T) {
	p := NewPoller(fakeMarkets{ticks: []domain.Tick{binary(0.60, 0.62, t0)}}, fakeSpots{"BTC": 100000}, []string{"BTC", "ETH"})
	p.now = func() time.Time { return t0 }

	batch, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0, batch.Time)
	assert.Len(t, batch.Ticks, 1)
	// ETH falla y se omite
	require.Len(t, batch.Spots, 1)
	assert.Equal(t, "BTC", batch.Spots[0].Asset)
}

func TestPoller_MarketsError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPoller(fakeMarkets{err: boom}, nil, nil)

	_, err := p.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRunOnce(t *testing.T) {
	e, _, _ := newEngine(t)
	b := entryBatch()
	p := NewPoller(fakeMarkets{ticks: b.Ticks}, nil, nil)
	p.now = func() time.Time { return t0 }

	res, err := e.RunOnce(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, res.Opened, 1)
}
