package replay

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/edgebot/config"
	"github.com/alejandrodnm/edgebot/internal/adapters/storage"
	"github.com/alejandrodnm/edgebot/internal/application/engine"
	"github.com/alejandrodnm/edgebot/internal/application/engine/paper"
	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Summary es el resultado de un replay completo.
type Summary struct {
	Batches      int
	Signals      int
	Actionable   int
	Trades       int
	Wins         int
	WinRate      float64
	TotalPnL     float64
	FinalBalance float64
	MaxDrawdown  float64
	Validation   domain.Validation // train/test sobre los trades en orden de cierre
	Closed       []domain.ClosedTrade
}

// Run reproduce los batches sobre un engine nuevo con store en memoria y
// cierra lo que quede abierto al final del stream. La cancelación se
// comprueba entre batches.
func Run(ctx context.Context, cfg *config.Config, batches []domain.TickBatch, opts paper.Options) (Summary, error) {
	store := storage.NewMemory()
	core, err := engine.BuildCore(cfg, store)
	if err != nil {
		return Summary{}, fmt.Errorf("replay.Run: %w", err)
	}
	if opts.Cycles == nil {
		opts.Cycles = store
	}
	e := paper.New(core, opts)

	var sum Summary
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("replay.Run: %w", err)
		}
		res, err := e.ProcessBatch(ctx, b)
		if err != nil {
			return sum, fmt.Errorf("replay.Run: batch %s: %w", b.Time, err)
		}
		sum.add(res)
	}

	if len(batches) > 0 {
		last := batches[len(batches)-1].Time
		res, err := e.ForceClose(ctx, last, domain.ExitStreamEnd)
		if err != nil {
			return sum, fmt.Errorf("replay.Run: stream end: %w", err)
		}
		sum.Closed = append(sum.Closed, res.Closed...)
	}

	w := core.Positions.Wallet()
	sum.Trades = w.TotalTrades
	sum.Wins = w.Wins
	sum.WinRate = w.WinRate()
	sum.TotalPnL = w.Balance - w.InitialBalance
	sum.FinalBalance = w.Balance
	sum.MaxDrawdown = w.MaxDrawdown
	sum.Validation = domain.CrossValidate(domain.SanitizeTrades(sum.Closed), domain.DefaultTrainRatio)
	return sum, nil
}

func (s *Summary) add(res *paper.CycleResult) {
	s.Batches++
	s.Signals += res.Summary.Signals
	s.Actionable += res.Summary.Actionable
	s.Closed = append(s.Closed, res.Closed...)
}

// Sweep ejecuta un replay independiente por configuración, en paralelo.
// Cada replay tiene su propio engine y store; los batches se comparten
// sólo para lectura. Los resultados respetan el orden de cfgs.
func Sweep(ctx context.Context, cfgs []*config.Config, batches []domain.TickBatch) ([]Summary, error) {
	out := make([]Summary, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, cfg := range cfgs {
		g.Go(func() error {
			s, err := Run(gctx, cfg, batches, paper.Options{})
			if err != nil {
				return fmt.Errorf("replay.Sweep: config %d: %w", i, err)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
