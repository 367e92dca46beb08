package domain

import (
	"fmt"
	"math"
	"time"
)

// SpotSample es una observación del precio spot de un activo subyacente.
type SpotSample struct {
	Asset     string
	Price     float64
	Timestamp time.Time
}

// Quote es un precio que puede no haberse resuelto desde el feed.
// Un campo desconocido nunca se sustituye por 0: corrompería el pricing.
type Quote struct {
	Value float64
	Known bool
}

// NewQuote devuelve un Quote conocido.
func NewQuote(v float64) Quote {
	return Quote{Value: v, Known: true}
}

// Or devuelve el valor si es conocido, o def en caso contrario.
func (q Quote) Or(def float64) float64 {
	if !q.Known {
		return def
	}
	return q.Value
}

// Contract es el snapshot de un contrato binario "¿X por encima de strike en T?".
// Se refresca en cada tick y no se muta localmente.
type Contract struct {
	MarketID      string
	Venue         string
	Asset         string
	Strike        float64
	Expiry        time.Time
	Bid           Quote // precio YES
	Ask           Quote // precio YES
	Last          Quote
	BidSize       float64 // contratos en el mejor bid (0 = desconocido)
	AskSize       float64 // contratos en el mejor ask (0 = desconocido)
	Volume        float64
	LastTradeTime time.Time
}

// Validate comprueba que el contrato es utilizable por el pricing.
func (c Contract) Validate() error {
	if c.MarketID == "" {
		return fmt.Errorf("%w: empty market id", ErrInvalidInput)
	}
	if c.Strike <= 0 || math.IsNaN(c.Strike) {
		return fmt.Errorf("%w: market %s: strike %v", ErrInvalidInput, c.MarketID, c.Strike)
	}
	if !c.Bid.Known || !c.Ask.Known {
		return fmt.Errorf("%w: market %s: bid/ask unknown", ErrInvalidInput, c.MarketID)
	}
	if !validProb(c.Bid.Value) || !validProb(c.Ask.Value) {
		return fmt.Errorf("%w: market %s: bid %.4f ask %.4f out of [0,1]",
			ErrInvalidInput, c.MarketID, c.Bid.Value, c.Ask.Value)
	}
	if c.Bid.Value > c.Ask.Value {
		return fmt.Errorf("%w: market %s: crossed book bid %.4f > ask %.4f",
			ErrInvalidInput, c.MarketID, c.Bid.Value, c.Ask.Value)
	}
	return nil
}

// Mid devuelve el punto medio del libro YES. Requiere bid y ask conocidos.
func (c Contract) Mid() float64 {
	return (c.Bid.Value + c.Ask.Value) / 2
}

// Spread devuelve ask - bid.
func (c Contract) Spread() float64 {
	return c.Ask.Value - c.Bid.Value
}

// HoursToExpiry devuelve las horas hasta el vencimiento, nunca negativas.
func (c Contract) HoursToExpiry(now time.Time) float64 {
	h := c.Expiry.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// StrikeType clasifica los brackets de un mercado escalera.
type StrikeType string

const (
	StrikeBetween StrikeType = "between"
	StrikeGreater StrikeType = "greater"
	StrikeLess    StrikeType = "less"
)

// Bracket es una banda discretizada [Floor, Cap) de un mercado escalera.
type Bracket struct {
	MarketID     string
	FloorStrike  float64
	CapStrike    float64
	StrikeType   StrikeType
	Bid          Quote
	Ask          Quote
	Mid          Quote
	Volume       float64
	OpenInterest float64
}

// MidPrice devuelve el mid explícito o, si falta, el promedio de bid y ask.
func (b Bracket) MidPrice() (float64, bool) {
	if b.Mid.Known {
		return b.Mid.Value, true
	}
	if b.Bid.Known && b.Ask.Known {
		return (b.Bid.Value + b.Ask.Value) / 2, true
	}
	return 0, false
}

// TwoSided indica si el bracket tiene cotización viva en ambos lados.
func (b Bracket) TwoSided() bool {
	return b.Bid.Known && b.Ask.Known && b.Bid.Value > 0 && b.Ask.Value > 0
}

// Tick es la forma canónica que entrega cualquier adaptador de venue.
// Un tick de mercado escalera trae Brackets; uno binario trae Contract.
type Tick struct {
	Contract *Contract
	Asset    string
	Expiry   time.Time
	Brackets []Bracket
}

// TickBatch agrupa todo lo recibido en un mismo instante del driver.
type TickBatch struct {
	Time  time.Time
	Spots []SpotSample
	Ticks []Tick
}

func validProb(p float64) bool {
	return p >= 0 && p <= 1 && !math.IsNaN(p)
}
