package pricing

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

const (
	hoursPerYear = 24 * 365

	// MinVolatility es el piso de volatilidad anualizada; evita dividir por cero.
	MinVolatility = 1e-4
)

// BinaryQuote es el resultado del pricer digital.
type BinaryQuote struct {
	Probability float64 // P(spot >= strike al vencimiento)
	D2          float64
	Volatility  float64 // volatilidad efectiva tras el piso
	Expired     bool    // T = 0: resultado determinista, sin Φ
}

// Pricer valora contratos binarios cash-or-nothing con Black-Scholes.
//
// Con LognormalDrift el d2 incluye el término -σ²T/2 (mediana lognormal);
// sin él, el contrato at-the-money vale exactamente 0.5.
type Pricer struct {
	LognormalDrift bool
}

// NewPricer crea un Pricer.
func NewPricer(lognormalDrift bool) Pricer {
	return Pricer{LognormalDrift: lognormalDrift}
}

// Price devuelve la probabilidad de que spot termine >= strike.
//
//	T  = hours / (24·365)
//	d2 = (ln(S/K) − ½σ²T) / (σ√T)
//	p  = Φ(d2)
func (p Pricer) Price(spot, strike, hours, vol float64) (BinaryQuote, error) {
	if !(spot > 0) || math.IsInf(spot, 0) {
		return BinaryQuote{}, fmt.Errorf("pricing.Price: spot %v: %w", spot, domain.ErrInvalidInput)
	}
	if !(strike > 0) || math.IsInf(strike, 0) {
		return BinaryQuote{}, fmt.Errorf("pricing.Price: strike %v: %w", strike, domain.ErrInvalidInput)
	}
	if hours < 0 || math.IsNaN(hours) {
		return BinaryQuote{}, fmt.Errorf("pricing.Price: hours %v: %w", hours, domain.ErrInvalidInput)
	}
	if math.IsNaN(vol) || vol < MinVolatility {
		vol = MinVolatility
	}

	if hours == 0 {
		q := BinaryQuote{Volatility: vol, Expired: true}
		if spot >= strike {
			q.Probability = 1
		}
		return q, nil
	}

	t := hours / hoursPerYear
	num := math.Log(spot / strike)
	if p.LognormalDrift {
		num -= 0.5 * vol * vol * t
	}
	d2 := num / (vol * math.Sqrt(t))
	return BinaryQuote{
		Probability: NormCDF(d2),
		D2:          d2,
		Volatility:  vol,
	}, nil
}

// Estimate envuelve Price como estimación del modelo estadístico.
func (p Pricer) Estimate(spot, strike, hours, vol float64) (domain.FairValueEstimate, error) {
	q, err := p.Price(spot, strike, hours, vol)
	if err != nil {
		return domain.FairValueEstimate{}, err
	}
	return domain.FairValueEstimate{
		Model:       domain.ModelStatistical,
		Probability: q.Probability,
		Stats: map[string]float64{
			"d2":     q.D2,
			"vol":    q.Volatility,
			"hours":  hours,
			"spot":   spot,
			"strike": strike,
		},
	}, nil
}

// NormCDF es la CDF normal estándar vía erfc, estable en las colas
// (error relativo del orden de 1e-15, muy por debajo de 1e-7).
func NormCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
