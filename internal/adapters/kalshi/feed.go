package kalshi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Series asocia una serie de Kalshi con el activo subyacente.
type Series struct {
	Ticker string
	Asset  string
}

// defaultWorkers es el número de descargas de eventos en paralelo.
const defaultWorkers = 4

// Feed implementa ports.MarketProvider sobre un conjunto de series.
type Feed struct {
	client  *Client
	series  []Series
	workers int
}

// NewFeed crea un Feed.
func NewFeed(client *Client, series []Series) *Feed {
	return &Feed{client: client, series: series, workers: defaultWorkers}
}

// SetWorkers cambia el número de eventos que se descargan en paralelo.
func (f *Feed) SetWorkers(n int) {
	f.workers = n
}

// FetchTicks recorre las series configuradas y devuelve los ticks de todos
// sus eventos abiertos, en el orden de las series. Un evento que falla se
// omite con un warning.
func (f *Feed) FetchTicks(ctx context.Context) ([]domain.Tick, error) {
	var jobs []eventJob
	for _, s := range f.series {
		events, err := f.client.GetSeriesEvents(ctx, s.Ticker)
		if err != nil {
			return nil, fmt.Errorf("kalshi.FetchTicks: %w", err)
		}
		for _, ev := range events {
			jobs = append(jobs, eventJob{idx: len(jobs), event: ev, asset: s.Asset})
		}
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	var ticks []domain.Tick
	var failed int
	for i, r := range fetchEventsConcurrent(ctx, f.client, jobs, f.workers) {
		if r.err != nil {
			failed++
			slog.Warn("kalshi: event fetch failed", "event", jobs[i].event, "err", r.err)
			continue
		}
		ticks = append(ticks, MapEvent(jobs[i].asset, r.markets)...)
	}
	if failed > 0 && len(ticks) == 0 {
		return nil, fmt.Errorf("kalshi.FetchTicks: all %d events failed", failed)
	}
	return ticks, nil
}
