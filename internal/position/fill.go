package position

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Límites de un precio de fill en convención YES.
const (
	minFillPrice = 0.001
	maxFillPrice = 0.999
)

// Modelos de fill soportados.
const (
	FillRealistic = "realistic"
	FillIdealized = "idealized"
)

// FillConfig selecciona y parametriza el modelo de fill.
type FillConfig struct {
	Model         string
	SlippageCoeff float64 // slippage = coeff · (size / depthUSD)^exp
	SlippageExp   float64
	MaxSlippage   float64 // techo, y valor usado sin profundidad conocida
	MakerOffset   float64 // sólo modelo idealizado
}

// FillModel devuelve el precio de ejecución en convención YES para
// abrir (opening=true) o cerrar una posición de size USDC.
type FillModel interface {
	Fill(c domain.Contract, dir domain.Direction, size float64, opening bool) (float64, error)
}

// NewFillModel construye el modelo configurado.
func NewFillModel(cfg FillConfig) (FillModel, error) {
	switch cfg.Model {
	case FillRealistic, "":
		return RealisticFill{Coeff: cfg.SlippageCoeff, Exp: cfg.SlippageExp, Max: cfg.MaxSlippage}, nil
	case FillIdealized:
		return IdealizedFill{Offset: cfg.MakerOffset}, nil
	default:
		return nil, fmt.Errorf("position.NewFillModel: %w: unknown fill model %q", domain.ErrInvalidInput, cfg.Model)
	}
}

// RealisticFill cruza el spread: compra YES al ask, NO a 1-bid, y sale por
// el lado contrario, más un slippage convexo en size/profundidad.
type RealisticFill struct {
	Coeff float64
	Exp   float64
	Max   float64
}

func (f RealisticFill) Fill(c domain.Contract, dir domain.Direction, size float64, opening bool) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("position.RealisticFill: %w", err)
	}
	bid, ask := c.Bid.Value, c.Ask.Value

	// Comprar YES o vender NO consume el ask; lo contrario consume el bid.
	// La profundidad en dólares es la del lado que se paga.
	var price, depthUSD float64
	buyingYes := (dir == domain.DirectionYes) == opening
	if buyingYes {
		price = ask
		if dir == domain.DirectionYes {
			depthUSD = c.AskSize * ask
		} else {
			depthUSD = c.AskSize * (1 - ask)
		}
		price += f.slippage(size, depthUSD)
	} else {
		price = bid
		if dir == domain.DirectionNo {
			depthUSD = c.BidSize * (1 - bid)
		} else {
			depthUSD = c.BidSize * bid
		}
		price -= f.slippage(size, depthUSD)
	}
	return clampFill(price), nil
}

func (f RealisticFill) slippage(size, depthUSD float64) float64 {
	if size <= 0 || f.Coeff <= 0 {
		return 0
	}
	if !(depthUSD > 0) {
		return f.Max
	}
	s := f.Coeff * math.Pow(size/depthUSD, f.Exp)
	if f.Max > 0 && s > f.Max {
		return f.Max
	}
	return s
}

// IdealizedFill ejecuta en el mid más un pequeño offset de maker.
type IdealizedFill struct {
	Offset float64
}

func (f IdealizedFill) Fill(c domain.Contract, dir domain.Direction, _ float64, opening bool) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("position.IdealizedFill: %w", err)
	}
	if (dir == domain.DirectionYes) == opening {
		return clampFill(c.Mid() + f.Offset), nil
	}
	return clampFill(c.Mid() - f.Offset), nil
}

func clampFill(p float64) float64 {
	return math.Min(maxFillPrice, math.Max(minFillPrice, p))
}
