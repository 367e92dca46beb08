package domain

import "time"

// Direction es el lado que tomaría una señal.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionYes  Direction = "YES"
	DirectionNo   Direction = "NO"
)

// SignalReason explica por qué una señal no es accionable.
// Son resultados normales: el engine dice "no" a la mayoría de los ticks.
type SignalReason string

const (
	ReasonNone         SignalReason = ""
	ReasonInvalidQuote SignalReason = "invalid quote"
	ReasonNoFairValue  SignalReason = "no fair value available"
	ReasonInsideSpread SignalReason = "fair value inside spread"
	ReasonEdgeTooSmall SignalReason = "edge too small"
	ReasonScoreTooLow  SignalReason = "score below floor"
	ReasonScoreTooHigh SignalReason = "score above sanity ceiling"
	ReasonExpired      SignalReason = "contract expired"
)

// Signal es la salida del generador para un contrato en un tick.
type Signal struct {
	MarketID          string
	Direction         Direction
	RawEdge           float64
	NetEdge           float64
	FairValue         float64
	AssumedEntryPrice float64 // siempre en convención YES
	KellyFraction     float64
	Score             float64
	Actionable        bool
	Reason            SignalReason
	Divergence        float64 // mid - sintético al generar, si se conoce
	HasDivergence     bool
	GeneratedAt       time.Time
}
