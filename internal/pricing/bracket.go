package pricing

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// CurvePoint es P(terminar por encima de Floor) según mid, bid y ask.
// Un lado sólo es válido si todos los brackets con floor' >= Floor lo
// cotizan; si no, Has* es false y el valor no se usa.
type CurvePoint struct {
	Floor  float64
	Mid    float64
	Bid    float64
	Ask    float64
	HasMid bool
	HasBid bool
	HasAsk bool
}

// Spread devuelve el spread de la curva en este punto. ok=false si falta
// alguno de los dos lados.
func (p CurvePoint) Spread() (float64, bool) {
	if !p.HasBid || !p.HasAsk {
		return 0, false
	}
	return p.Ask - p.Bid, true
}

// BracketCurve es la curva continua "P(above strike)" de un mercado escalera.
// Points está ordenado por Floor ascendente y es no creciente en probabilidad.
type BracketCurve struct {
	Points      []CurvePoint
	LiveQuotes  int     // brackets con cotización a dos lados
	TotalVolume float64 // volumen agregado de los brackets incluidos
}

// BuildBracketCurve convierte los brackets "between" en la suma de cola de la
// PMF discretizada: P(>floor) = Σ precio de brackets con floor' >= floor.
// Un precio desconocido nunca cuenta como 0: invalida ese lado de la cola
// desde su floor hacia abajo. Los demás tipos de strike se ignoran.
func BuildBracketCurve(brackets []domain.Bracket) (BracketCurve, error) {
	type mass struct {
		mid, bid, ask       float64
		noMid, noBid, noAsk bool
	}
	byFloor := make(map[float64]*mass)
	var curve BracketCurve

	for _, b := range brackets {
		if b.StrikeType != domain.StrikeBetween {
			continue
		}
		if err := validateBracket(b); err != nil {
			return BracketCurve{}, err
		}
		m, ok := byFloor[b.FloorStrike]
		if !ok {
			m = &mass{}
			byFloor[b.FloorStrike] = m
		}
		if mid, ok := b.MidPrice(); ok {
			m.mid += mid
		} else {
			m.noMid = true
		}
		if b.Bid.Known {
			m.bid += b.Bid.Value
		} else {
			m.noBid = true
		}
		if b.Ask.Known {
			m.ask += b.Ask.Value
		} else {
			m.noAsk = true
		}
		if b.TwoSided() {
			curve.LiveQuotes++
		}
		curve.TotalVolume += b.Volume
	}

	floors := make([]float64, 0, len(byFloor))
	for f := range byFloor {
		floors = append(floors, f)
	}
	sort.Float64s(floors)

	curve.Points = make([]CurvePoint, len(floors))
	var mid, bid, ask float64
	hasMid, hasBid, hasAsk := true, true, true
	for i := len(floors) - 1; i >= 0; i-- {
		m := byFloor[floors[i]]
		mid += m.mid
		bid += m.bid
		ask += m.ask
		hasMid = hasMid && !m.noMid
		hasBid = hasBid && !m.noBid
		hasAsk = hasAsk && !m.noAsk
		pt := CurvePoint{Floor: floors[i], HasMid: hasMid, HasBid: hasBid, HasAsk: hasAsk}
		if hasMid {
			pt.Mid = math.Min(mid, 1)
		}
		if hasBid {
			pt.Bid = math.Min(bid, 1)
		}
		if hasAsk {
			pt.Ask = math.Min(ask, 1)
		}
		curve.Points[i] = pt
	}
	return curve, nil
}

func validateBracket(b domain.Bracket) error {
	if !(b.FloorStrike > 0) || !(b.CapStrike > b.FloorStrike) {
		return fmt.Errorf("pricing.BuildBracketCurve: %s floor %v cap %v: %w",
			b.MarketID, b.FloorStrike, b.CapStrike, domain.ErrInvalidInput)
	}
	for _, q := range []domain.Quote{b.Bid, b.Ask, b.Mid} {
		if q.Known && (q.Value < 0 || q.Value > 1 || math.IsNaN(q.Value)) {
			return fmt.Errorf("pricing.BuildBracketCurve: %s price %v: %w",
				b.MarketID, q.Value, domain.ErrInvalidInput)
		}
	}
	if b.Bid.Known && b.Ask.Known && b.Ask.Value > 0 && b.Bid.Value > b.Ask.Value {
		return fmt.Errorf("pricing.BuildBracketCurve: %s crossed %v > %v: %w",
			b.MarketID, b.Bid.Value, b.Ask.Value, domain.ErrInvalidInput)
	}
	return nil
}

// ProbAbove devuelve el punto cuyo floor coincide exactamente.
func (c BracketCurve) ProbAbove(floor float64) (CurvePoint, bool) {
	i := sort.Search(len(c.Points), func(i int) bool { return c.Points[i].Floor >= floor })
	if i < len(c.Points) && c.Points[i].Floor == floor {
		return c.Points[i], true
	}
	return CurvePoint{}, false
}

// Match busca el punto con el floor más cercano al strike objetivo y lo
// acepta sólo dentro de tolerance. Nunca extrapola. En empate gana el floor menor.
func (c BracketCurve) Match(strike, tolerance float64) (CurvePoint, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range c.Points {
		if d := math.Abs(p.Floor - strike); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > tolerance {
		return CurvePoint{}, false
	}
	return c.Points[best], true
}

// curveKey identifica un mercado escalera por activo y vencimiento.
type curveKey struct {
	asset  string
	expiry int64
}

// BracketBook guarda la última curva por (activo, vencimiento).
type BracketBook struct {
	curves map[curveKey]BracketCurve
	mu     sync.RWMutex
}

// NewBracketBook crea un book vacío.
func NewBracketBook() *BracketBook {
	return &BracketBook{curves: make(map[curveKey]BracketCurve)}
}

// Update reconstruye y guarda la curva de un tick escalera.
func (bb *BracketBook) Update(asset string, expiry time.Time, brackets []domain.Bracket) (BracketCurve, error) {
	curve, err := BuildBracketCurve(brackets)
	if err != nil {
		return BracketCurve{}, err
	}
	bb.mu.Lock()
	bb.curves[curveKey{asset, expiry.Unix()}] = curve
	bb.mu.Unlock()
	return curve, nil
}

// Curve devuelve la curva guardada para el activo y vencimiento.
func (bb *BracketBook) Curve(asset string, expiry time.Time) (BracketCurve, bool) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()
	c, ok := bb.curves[curveKey{asset, expiry.Unix()}]
	return c, ok && len(c.Points) > 0
}

// Synthetic devuelve la estimación cross-market para un contrato binario,
// junto con el punto de curva usado. ok=false si el mid de la cola en ese
// punto no está completo.
func (bb *BracketBook) Synthetic(c domain.Contract, tolerance float64) (domain.FairValueEstimate, CurvePoint, bool) {
	curve, ok := bb.Curve(c.Asset, c.Expiry)
	if !ok {
		return domain.FairValueEstimate{}, CurvePoint{}, false
	}
	pt, ok := curve.Match(c.Strike, tolerance)
	if !ok || !pt.HasMid {
		return domain.FairValueEstimate{}, CurvePoint{}, false
	}
	stats := map[string]float64{
		"floor":       pt.Floor,
		"live_quotes": float64(curve.LiveQuotes),
		"volume":      curve.TotalVolume,
	}
	if pt.HasBid {
		stats["bid"] = pt.Bid
	}
	if pt.HasAsk {
		stats["ask"] = pt.Ask
	}
	return domain.FairValueEstimate{
		Model:       domain.ModelSynthetic,
		Probability: pt.Mid,
		Stats:       stats,
	}, pt, true
}

// Reset vacía el book.
func (bb *BracketBook) Reset() {
	bb.mu.Lock()
	bb.curves = make(map[curveKey]BracketCurve)
	bb.mu.Unlock()
}
