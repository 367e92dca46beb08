package ports

import (
	"context"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// TradeStore persiste trades de paper trading y el wallet.
// El core no conoce el formato de almacenamiento.
type TradeStore interface {
	// InsertTrade registra una posición abierta y devuelve su ID.
	InsertTrade(ctx context.Context, p domain.Position) (string, error)

	// CloseTrade marca un trade como cerrado con su precio de salida,
	// pnl, duración y motivo.
	CloseTrade(ctx context.Context, t domain.ClosedTrade) error

	// GetOpenTrades devuelve las posiciones todavía abiertas.
	GetOpenTrades(ctx context.Context) ([]domain.Position, error)

	// GetWallet devuelve el wallet persistido, o domain.ErrNotFound.
	GetWallet(ctx context.Context) (domain.Wallet, error)

	// UpdateWallet persiste el wallet tras aplicar pnlDelta.
	UpdateWallet(ctx context.Context, w domain.Wallet, pnlDelta float64) error

	// GetClosedTrades devuelve el histórico de trades cerrados por fecha de salida.
	GetClosedTrades(ctx context.Context) ([]domain.ClosedTrade, error)
}

// CycleStore guarda el resumen de cada ciclo del engine.
type CycleStore interface {
	SaveCycle(ctx context.Context, s domain.CycleSummary) error
}
