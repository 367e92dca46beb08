package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/edgebot/internal/application/engine"
	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/metrics"
	"github.com/alejandrodnm/edgebot/internal/ports"
	"github.com/alejandrodnm/edgebot/internal/position"
	"github.com/alejandrodnm/edgebot/internal/signal"
)

// Options son los colaboradores opcionales del engine. Cualquiera puede ser nil.
type Options struct {
	Sink     ports.SignalSink
	Notifier ports.Notifier
	Cycles   ports.CycleStore
	Metrics  *metrics.Recorder
}

// Engine procesa batches de ticks sobre un Core: primero salidas, después
// señales y entradas. No es seguro para uso concurrente.
type Engine struct {
	core    *engine.Core
	opts    Options
	denyLog rate.Sometimes
}

// New crea un engine de paper trading.
func New(core *engine.Core, opts Options) *Engine {
	return &Engine{
		core:    core,
		opts:    opts,
		denyLog: rate.Sometimes{Interval: time.Minute},
	}
}

// Core devuelve el core que usa el engine.
func (e *Engine) Core() *engine.Core {
	return e.core
}

// CycleResult contiene todo lo producido por un batch.
type CycleResult struct {
	Summary   domain.CycleSummary
	Signals   []domain.Signal // una por contrato, en orden de MarketID
	Opened    []domain.Position
	Closed    []domain.ClosedTrade
	Ambiguous []string
	Pending   int
}

// Actionable devuelve sólo las señales accionables del ciclo.
func (r *CycleResult) Actionable() []domain.Signal {
	var out []domain.Signal
	for _, s := range r.Signals {
		if s.Actionable {
			out = append(out, s)
		}
	}
	return out
}

// OnSpot registra una observación spot en los trackers de volatilidad y velocidad.
func (e *Engine) OnSpot(s domain.SpotSample) error {
	if err := e.core.Vol.Add(s); err != nil {
		return fmt.Errorf("paper.OnSpot: %w", err)
	}
	e.core.Velocity.Track(s.Asset, s.Price, s.Timestamp)
	return nil
}

// quoted es un contrato válido con lo que el tick sabe de él.
type quoted struct {
	contract  domain.Contract
	synthetic domain.FairValueEstimate
	spread    float64 // spread de la curva en el strike
	hasSpread bool
	hasSynth  bool
}

// ProcessBatch procesa un batch de ticks. Los errores de persistencia se
// devuelven junto al resultado parcial; los rechazos son valores.
func (e *Engine) ProcessBatch(ctx context.Context, batch domain.TickBatch) (*CycleResult, error) {
	now := batch.Time
	res := &CycleResult{Summary: domain.CycleSummary{
		At:     now,
		Ticks:  len(batch.Ticks),
		Denied: make(map[domain.DenyReason]int),
	}}
	var errs []error

	for _, s := range batch.Spots {
		if err := e.OnSpot(s); err != nil {
			slog.Warn("paper: spot descartado", "asset", s.Asset, "err", err)
		}
	}

	// escaleras primero: el sintético de los binarios depende de la curva
	var contracts []domain.Contract
	for _, t := range batch.Ticks {
		if len(t.Brackets) > 0 {
			if _, err := e.core.Brackets.Update(t.Asset, t.Expiry, t.Brackets); err != nil {
				slog.Debug("paper: curva escalera descartada", "asset", t.Asset, "expiry", t.Expiry, "err", err)
			}
		}
		if t.Contract != nil {
			contracts = append(contracts, *t.Contract)
		}
	}
	sort.SliceStable(contracts, func(i, j int) bool { return contracts[i].MarketID < contracts[j].MarketID })

	quotes := make([]quoted, len(contracts))
	views := make(map[string]position.MarketView, len(contracts))
	for i, c := range contracts {
		q := quoted{contract: c}
		if est, pt, ok := e.core.Brackets.Synthetic(c, e.core.StrikeTolerance); ok {
			q.synthetic, q.hasSynth = est, true
			q.spread, q.hasSpread = pt.Spread()
		}
		quotes[i] = q

		v := position.MarketView{Contract: c}
		if q.hasSynth && c.Validate() == nil {
			v.Divergence = c.Mid() - q.synthetic.Probability
			v.HasDivergence = true
		}
		views[c.MarketID] = v
	}

	// (a) salidas con los precios de este tick
	ev, err := e.core.Positions.Evaluate(ctx, views, now)
	if err != nil {
		errs = append(errs, err)
	}
	res.Closed = ev.Closed
	res.Ambiguous = ev.Ambiguous
	res.Pending = ev.Pending
	for _, t := range ev.Closed {
		slog.Info("paper: posición cerrada",
			"market", engine.TruncateStr(t.MarketID, 40),
			"dir", t.Direction,
			"reason", t.ExitReason,
			"exit", fmt.Sprintf("%.4f", t.ExitPrice),
			"pnl", fmt.Sprintf("$%+.2f", t.PnL),
		)
		e.opts.Metrics.Closed(t)
	}
	for _, market := range ev.Ambiguous {
		slog.Warn("paper: settlement ambiguo, se mantiene abierta", "market", market)
	}
	e.opts.Metrics.Ambiguous(len(ev.Ambiguous))

	// (b) señales y entradas
	for _, q := range quotes {
		sig := e.signal(q, now)
		res.Signals = append(res.Signals, sig)
		e.opts.Metrics.Signal(sig)
		if !sig.Actionable {
			continue
		}
		res.Summary.Actionable++

		p, deny, err := e.core.Positions.Admit(ctx, sig, q.contract, now)
		switch {
		case err != nil:
			errs = append(errs, err)
		case deny != domain.DenyNone:
			res.Summary.Denied[deny]++
			e.opts.Metrics.Denied(deny)
			e.denyLog.Do(func() {
				slog.Info("paper: admisión rechazada", "market", sig.MarketID, "reason", deny)
			})
		default:
			res.Opened = append(res.Opened, p)
			slog.Info("paper: posición abierta",
				"market", engine.TruncateStr(p.MarketID, 40),
				"dir", p.Direction,
				"entry", fmt.Sprintf("%.4f", p.EntryPrice),
				"size", fmt.Sprintf("$%.2f", p.Size),
				"edge", fmt.Sprintf("%.4f", sig.NetEdge),
				"score", fmt.Sprintf("%.0f", sig.Score),
			)
		}
	}

	e.finish(ctx, res)
	return res, errors.Join(errs...)
}

// ForceClose cierra todas las posiciones abiertas, p.ej. al final del stream.
func (e *Engine) ForceClose(ctx context.Context, now time.Time, reason domain.ExitReason) (*CycleResult, error) {
	res := &CycleResult{Summary: domain.CycleSummary{At: now, Denied: make(map[domain.DenyReason]int)}}
	ev, err := e.core.Positions.ForceCloseAll(ctx, now, reason)
	res.Closed = ev.Closed
	res.Pending = ev.Pending
	for _, t := range ev.Closed {
		e.opts.Metrics.Closed(t)
	}
	e.finish(ctx, res)
	return res, err
}

// signal combina los modelos disponibles y genera la señal del contrato.
func (e *Engine) signal(q quoted, now time.Time) domain.Signal {
	c := q.contract
	in := signal.Input{Contract: c, Now: now}
	var inputs signal.ScoreInputs
	var estimates []domain.FairValueEstimate

	stat, hasStat := e.statistical(c, now)
	if hasStat {
		estimates = append(estimates, stat)
	}
	if q.hasSynth {
		estimates = append(estimates, q.synthetic)
	}
	if q.hasSpread {
		inputs.SpreadThere, inputs.HasThere = q.spread, true
	}
	if hasStat && q.hasSynth {
		inputs.ModelGap = math.Abs(stat.Probability - q.synthetic.Probability)
		inputs.HasConsensus = true
	}
	if v, ok := e.core.Velocity.Velocity(c.Asset, e.core.VelocityWindow); ok {
		inputs.Velocity, inputs.HasVelocity = v, true
	}
	if c.Validate() == nil {
		inputs.SpreadHere = c.Spread()
		if q.hasSynth {
			in.Divergence = c.Mid() - q.synthetic.Probability
			in.HasDivergence = true
		}
	}
	if !c.LastTradeTime.IsZero() && !c.LastTradeTime.After(now) {
		inputs.QuoteAge, inputs.HasQuoteAge = now.Sub(c.LastTradeTime), true
	}

	in.Estimate, in.HasEstimate = e.core.Blender.Blend(estimates...)
	in.Score = e.core.Scorer.Score(inputs)
	return e.core.Generator.Generate(in)
}

// statistical sólo se usa con volatilidad medida y spot conocido.
func (e *Engine) statistical(c domain.Contract, now time.Time) (domain.FairValueEstimate, bool) {
	spot, ok := e.core.Vol.Latest(c.Asset)
	if !ok {
		return domain.FairValueEstimate{}, false
	}
	vol := e.core.Vol.Estimate(c.Asset)
	if !vol.Supported {
		return domain.FairValueEstimate{}, false
	}
	est, err := e.core.Pricer.Estimate(spot.Price, c.Strike, c.HoursToExpiry(now), vol.Annualized)
	if err != nil {
		slog.Debug("paper: estimación estadística descartada", "market", c.MarketID, "err", err)
		return domain.FairValueEstimate{}, false
	}
	return est, true
}

// finish completa el resumen y entrega el ciclo a los colaboradores.
// Sus fallos se loguean: nunca deshacen el ciclo.
func (e *Engine) finish(ctx context.Context, res *CycleResult) {
	open := e.core.Positions.Open()
	wallet := e.core.Positions.Wallet()

	res.Summary.Signals = len(res.Signals)
	res.Summary.Opened = len(res.Opened)
	res.Summary.Closed = len(res.Closed)
	res.Summary.Ambiguous = len(res.Ambiguous)
	res.Summary.Balance = wallet.Balance
	e.opts.Metrics.State(len(open), wallet)

	if e.opts.Sink != nil {
		if actionable := res.Actionable(); len(actionable) > 0 {
			if err := e.opts.Sink.Publish(ctx, actionable); err != nil {
				slog.Warn("paper: error publicando señales", "err", err)
			}
		}
	}
	if e.opts.Notifier != nil && len(res.Closed) > 0 {
		if err := e.opts.Notifier.NotifyClosed(ctx, res.Closed); err != nil {
			slog.Warn("paper: error notificando cierres", "err", err)
		}
	}
	if e.opts.Cycles != nil {
		if err := e.opts.Cycles.SaveCycle(ctx, res.Summary); err != nil {
			slog.Warn("paper: error guardando ciclo", "err", err)
		}
	}
}
