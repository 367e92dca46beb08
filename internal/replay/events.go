// Package replay reproduce un stream de eventos JSON-lines sobre un engine
// de paper trading, de forma determinista.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Tipos de evento del stream.
const (
	EventSpot = "spot"
	EventTick = "tick"
)

// Event es una línea del stream. Un tick trae Contract, o Asset+Expiry+Brackets.
type Event struct {
	Type     string         `json:"type"`
	Time     time.Time      `json:"time"`
	Asset    string         `json:"asset,omitempty"`
	Price    float64        `json:"price,omitempty"`
	Contract *ContractEvent `json:"contract,omitempty"`
	Expiry   time.Time      `json:"expiry,omitzero"`
	Brackets []BracketEvent `json:"brackets,omitempty"`
}

// ContractEvent es un contrato binario. Precios ausentes (null) quedan
// como desconocidos.
type ContractEvent struct {
	MarketID      string    `json:"market_id"`
	Venue         string    `json:"venue,omitempty"`
	Asset         string    `json:"asset"`
	Strike        float64   `json:"strike"`
	Expiry        time.Time `json:"expiry"`
	Bid           *float64  `json:"bid"`
	Ask           *float64  `json:"ask"`
	Last          *float64  `json:"last,omitempty"`
	BidSize       float64   `json:"bid_size,omitempty"`
	AskSize       float64   `json:"ask_size,omitempty"`
	Volume        float64   `json:"volume,omitempty"`
	LastTradeTime time.Time `json:"last_trade_time,omitzero"`
}

// BracketEvent es una banda de un mercado escalera.
type BracketEvent struct {
	MarketID     string   `json:"market_id"`
	Floor        float64  `json:"floor"`
	Cap          float64  `json:"cap"`
	StrikeType   string   `json:"strike_type"`
	Bid          *float64 `json:"bid"`
	Ask          *float64 `json:"ask"`
	Mid          *float64 `json:"mid,omitempty"`
	Volume       float64  `json:"volume,omitempty"`
	OpenInterest float64  `json:"open_interest,omitempty"`
}

func quote(v *float64) domain.Quote {
	if v == nil {
		return domain.Quote{}
	}
	return domain.NewQuote(*v)
}

func (c ContractEvent) contract() *domain.Contract {
	return &domain.Contract{
		MarketID:      c.MarketID,
		Venue:         c.Venue,
		Asset:         c.Asset,
		Strike:        c.Strike,
		Expiry:        c.Expiry,
		Bid:           quote(c.Bid),
		Ask:           quote(c.Ask),
		Last:          quote(c.Last),
		BidSize:       c.BidSize,
		AskSize:       c.AskSize,
		Volume:        c.Volume,
		LastTradeTime: c.LastTradeTime,
	}
}

func (b BracketEvent) bracket() domain.Bracket {
	return domain.Bracket{
		MarketID:     b.MarketID,
		FloorStrike:  b.Floor,
		CapStrike:    b.Cap,
		StrikeType:   domain.StrikeType(b.StrikeType),
		Bid:          quote(b.Bid),
		Ask:          quote(b.Ask),
		Mid:          quote(b.Mid),
		Volume:       b.Volume,
		OpenInterest: b.OpenInterest,
	}
}

// ReadBatches lee el stream y agrupa en un batch los eventos consecutivos
// con el mismo timestamp. Los timestamps no pueden retroceder.
func ReadBatches(r io.Reader) ([]domain.TickBatch, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var batches []domain.TickBatch
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("replay.ReadBatches: line %d: %w", line, err)
		}
		if ev.Time.IsZero() {
			return nil, fmt.Errorf("replay.ReadBatches: line %d: %w: missing time", line, domain.ErrInvalidInput)
		}

		n := len(batches)
		switch {
		case n == 0 || ev.Time.After(batches[n-1].Time):
			batches = append(batches, domain.TickBatch{Time: ev.Time.UTC()})
			n++
		case ev.Time.Before(batches[n-1].Time):
			return nil, fmt.Errorf("replay.ReadBatches: line %d: %w: time %s before %s",
				line, domain.ErrInvalidInput, ev.Time.Format(time.RFC3339), batches[n-1].Time.Format(time.RFC3339))
		}
		b := &batches[n-1]

		switch ev.Type {
		case EventSpot:
			b.Spots = append(b.Spots, domain.SpotSample{Asset: ev.Asset, Price: ev.Price, Timestamp: ev.Time})
		case EventTick:
			t := domain.Tick{Asset: ev.Asset, Expiry: ev.Expiry}
			if ev.Contract != nil {
				t.Contract = ev.Contract.contract()
			}
			for _, br := range ev.Brackets {
				t.Brackets = append(t.Brackets, br.bracket())
			}
			if t.Contract == nil && len(t.Brackets) == 0 {
				return nil, fmt.Errorf("replay.ReadBatches: line %d: %w: empty tick", line, domain.ErrInvalidInput)
			}
			b.Ticks = append(b.Ticks, t)
		default:
			return nil, fmt.Errorf("replay.ReadBatches: line %d: %w: unknown event type %q", line, domain.ErrInvalidInput, ev.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("replay.ReadBatches: %w", err)
	}
	return batches, nil
}
