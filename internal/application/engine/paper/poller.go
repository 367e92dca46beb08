package paper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/ports"
)

// BatchSource entrega el siguiente batch de ticks al engine.
type BatchSource interface {
	Next(ctx context.Context) (domain.TickBatch, error)
}

// Poller arma un batch consultando los venues en vivo.
type Poller struct {
	markets ports.MarketProvider
	spots   ports.SpotProvider
	assets  []string
	now     func() time.Time
}

// NewPoller crea un Poller. spots puede ser nil: sin spot sólo opera el
// modelo sintético.
func NewPoller(markets ports.MarketProvider, spots ports.SpotProvider, assets []string) *Poller {
	return &Poller{markets: markets, spots: spots, assets: assets, now: time.Now}
}

// Next consulta contratos y spots en paralelo. Un spot que falla se omite;
// un fallo del feed de contratos es error.
func (p *Poller) Next(ctx context.Context) (domain.TickBatch, error) {
	batch := domain.TickBatch{Time: p.now().UTC()}
	spots := make([]*domain.SpotSample, len(p.assets))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticks, err := p.markets.FetchTicks(gctx)
		if err != nil {
			return fmt.Errorf("markets: %w", err)
		}
		batch.Ticks = ticks
		return nil
	})
	if p.spots != nil {
		for i, asset := range p.assets {
			g.Go(func() error {
				s, err := p.spots.FetchSpot(gctx, asset)
				if err != nil {
					slog.Warn("paper: spot no disponible", "asset", asset, "err", err)
					return nil
				}
				spots[i] = &s
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return domain.TickBatch{}, fmt.Errorf("paper.Poller.Next: %w", err)
	}

	for _, s := range spots {
		if s != nil {
			batch.Spots = append(batch.Spots, *s)
		}
	}
	return batch, nil
}

// RunOnce obtiene un batch de src y lo procesa.
func (e *Engine) RunOnce(ctx context.Context, src BatchSource) (*CycleResult, error) {
	batch, err := src.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("paper.RunOnce: %w", err)
	}
	return e.ProcessBatch(ctx, batch)
}
