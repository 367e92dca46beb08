package domain

import "errors"

var (
	// ErrInvalidInput se devuelve en el borde de la llamada; nunca se corrige en silencio.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSettlementAmbiguous indica un precio cerca, pero no en, 0/1 al vencimiento.
	ErrSettlementAmbiguous = errors.New("settlement ambiguous")
	ErrNotFound            = errors.New("not found")
	ErrPositionClosed      = errors.New("position already closed")
)
