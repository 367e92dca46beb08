package ports

import (
	"context"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// SignalSink recibe las señales accionables de cada ciclo
// (bus de redis, consola, tests).
type SignalSink interface {
	Publish(ctx context.Context, signals []domain.Signal) error
}

// Notifier presenta al usuario los trades cerrados del ciclo.
type Notifier interface {
	NotifyClosed(ctx context.Context, trades []domain.ClosedTrade) error
}
