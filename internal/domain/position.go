package domain

import (
	"math"
	"time"
)

// PositionStatus es el estado de una posición simulada.
type PositionStatus int

const (
	StatusOpen PositionStatus = iota
	StatusClosing
	StatusClosed
)

func (s PositionStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ExitReason indica qué condición cerró la posición.
type ExitReason string

const (
	ExitSettlement  ExitReason = "settlement"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitStopLoss    ExitReason = "stop_loss"
	ExitConvergence ExitReason = "convergence"
	ExitTimeout     ExitReason = "timeout"
	ExitStreamEnd   ExitReason = "stream_end"
)

// Position es una posición de paper trading.
// EntryPrice está siempre en convención YES, también para trades NO
// (el coste NO es 1 - EntryPrice).
type Position struct {
	ID              string
	MarketID        string
	Asset           string
	Direction       Direction
	EntryPrice      float64
	Size            float64 // USDC comprometidos
	TakeProfitPrice float64 // convención YES
	StopLossPrice   float64 // convención YES
	EntryTime       time.Time
	Expiry          time.Time
	MaxHold         time.Duration
	Status          PositionStatus
	FairValue       float64 // fair value al entrar
	EntryDivergence float64
	TracksDiverge   bool // true si hubo estimación sintética al entrar
}

// Cost devuelve el coste por contrato del lado tomado.
func (p Position) Cost() float64 {
	if p.Direction == DirectionNo {
		return 1 - p.EntryPrice
	}
	return p.EntryPrice
}

// Held devuelve el tiempo transcurrido desde la entrada.
func (p Position) Held(now time.Time) time.Duration {
	d := now.Sub(p.EntryTime)
	if d < 0 {
		return 0
	}
	return d
}

// ClosedTrade es una posición cerrada con su resultado.
type ClosedTrade struct {
	Position
	ExitPrice  float64
	ExitReason ExitReason
	ExitTime   time.Time
	GrossPnL   float64
	Fees       float64
	PnL        float64
	Hold       time.Duration
}

// HoldSeconds devuelve la duración en segundos (contrato del colaborador de persistencia).
func (t ClosedTrade) HoldSeconds() float64 {
	return t.Hold.Seconds()
}

// Win indica si el trade terminó en ganancia neta.
func (t ClosedTrade) Win() bool {
	return t.PnL > 0
}

// Wallet es el agregado externo que sólo cambia al cerrar una posición.
type Wallet struct {
	Balance        float64
	InitialBalance float64
	TotalTrades    int
	Wins           int
	Losses         int
	Peak           float64
	MaxDrawdown    float64 // máximo de (peak - balance) / peak
}

// NewWallet crea un wallet con el balance inicial dado.
func NewWallet(initial float64) Wallet {
	return Wallet{Balance: initial, InitialBalance: initial, Peak: initial}
}

// Apply registra el P&L de un cierre: balance, contadores, pico y drawdown.
func (w *Wallet) Apply(pnl float64) {
	w.Balance += pnl
	w.TotalTrades++
	if pnl > 0 {
		w.Wins++
	} else {
		w.Losses++
	}
	if w.Balance > w.Peak {
		w.Peak = w.Balance
	}
	if w.Peak > 0 {
		w.MaxDrawdown = math.Max(w.MaxDrawdown, (w.Peak-w.Balance)/w.Peak)
	}
}

// WinRate devuelve wins / trades, o 0 sin trades.
func (w Wallet) WinRate() float64 {
	if w.TotalTrades == 0 {
		return 0
	}
	return float64(w.Wins) / float64(w.TotalTrades)
}

// DenyReason explica por qué se rechazó la admisión de una posición.
type DenyReason string

const (
	DenyNone          DenyReason = ""
	DenyNotActionable DenyReason = "signal not actionable"
	DenyDuplicate     DenyReason = "position already open"
	DenyMaxPositions  DenyReason = "max concurrent positions"
	DenyCooldown      DenyReason = "market cooldown"
	DenyTooSmall      DenyReason = "size below minimum"
	DenyExpiring      DenyReason = "contract at expiry"
)
