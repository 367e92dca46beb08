package ports

import (
	"context"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// MarketProvider obtiene snapshots de contratos desde un venue.
type MarketProvider interface {
	// FetchTicks devuelve un Tick canónico por evento (contrato binario
	// y/o escalera de brackets). Los campos no resueltos quedan como
	// domain.Quote{Known: false}.
	FetchTicks(ctx context.Context) ([]domain.Tick, error)
}

// SpotProvider obtiene el precio spot del subyacente.
type SpotProvider interface {
	FetchSpot(ctx context.Context, asset string) (domain.SpotSample, error)
}
