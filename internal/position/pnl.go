package position

import "github.com/alejandrodnm/edgebot/internal/domain"

// maxPnLMultiple acota el pnl a [-size, size·maxPnLMultiple].
const maxPnLMultiple = 10

// GrossPnL calcula el pnl antes de fees con las fórmulas en convención YES.
//
//	YES: (exit − entry) · size / entry
//	NO:  (entry − exit) · size / (1 − entry)
func GrossPnL(dir domain.Direction, entry, exit, size float64) float64 {
	switch dir {
	case domain.DirectionYes:
		if entry <= 0 {
			return 0
		}
		return (exit - entry) * size / entry
	case domain.DirectionNo:
		if entry >= 1 {
			return 0
		}
		return (entry - exit) * size / (1 - entry)
	default:
		return 0
	}
}

// Fees cobra feePerSide sobre el nocional de cada pata: size a la entrada
// y el valor de la posición (size + gross) a la salida.
func Fees(size, gross, feePerSide float64) float64 {
	exitNotional := size + gross
	if exitNotional < 0 {
		exitNotional = 0
	}
	return feePerSide*size + feePerSide*exitNotional
}

// NetPnL devuelve gross, fees y pnl neto acotado a [-size, 10·size].
func NetPnL(dir domain.Direction, entry, exit, size, feePerSide float64) (gross, fees, net float64) {
	gross = GrossPnL(dir, entry, exit, size)
	fees = Fees(size, gross, feePerSide)
	net = gross - fees
	if net < -size {
		net = -size
	}
	if upper := size * maxPnLMultiple; net > upper {
		net = upper
	}
	return gross, fees, net
}
