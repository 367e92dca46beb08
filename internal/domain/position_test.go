package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallet_Apply(t *testing.T) {
	w := NewWallet(1000)
	w.Apply(100)
	w.Apply(-220)
	w.Apply(50)

	assert.InDelta(t, 930, w.Balance, 1e-9)
	assert.InDelta(t, 1100, w.Peak, 1e-9)
	assert.InDelta(t, 220.0/1100, w.MaxDrawdown, 1e-12)
	assert.Equal(t, 3, w.TotalTrades)
	assert.Equal(t, 2, w.Wins)
	assert.Equal(t, 1, w.Losses)
	assert.InDelta(t, 2.0/3, w.WinRate(), 1e-12)
}

func TestWallet_FlatTradeIsLoss(t *testing.T) {
	w := NewWallet(1000)
	w.Apply(0)
	assert.Equal(t, 1, w.Losses)
	assert.Zero(t, w.MaxDrawdown)
	assert.Zero(t, NewWallet(10).WinRate())
}

func TestPosition_CostAndHeld(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	yes := Position{Direction: DirectionYes, EntryPrice: 0.30, EntryTime: now}
	no := Position{Direction: DirectionNo, EntryPrice: 0.30, EntryTime: now}

	assert.InDelta(t, 0.30, yes.Cost(), 1e-12)
	assert.InDelta(t, 0.70, no.Cost(), 1e-12)
	assert.Equal(t, time.Hour, yes.Held(now.Add(time.Hour)))
	assert.Zero(t, yes.Held(now.Add(-time.Minute)))
}

func TestContract_Validate(t *testing.T) {
	base := Contract{MarketID: "M", Strike: 97000, Bid: NewQuote(0.40), Ask: NewQuote(0.45)}
	assert.NoError(t, base.Validate())
	assert.InDelta(t, 0.425, base.Mid(), 1e-12)
	assert.InDelta(t, 0.05, base.Spread(), 1e-12)

	tests := []struct {
		name string
		mod  func(*Contract)
	}{
		{"empty id", func(c *Contract) { c.MarketID = "" }},
		{"zero strike", func(c *Contract) { c.Strike = 0 }},
		{"unknown ask", func(c *Contract) { c.Ask = Quote{} }},
		{"price above one", func(c *Contract) { c.Ask = NewQuote(1.2) }},
		{"crossed", func(c *Contract) { c.Bid = NewQuote(0.50) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mod(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidInput)
		})
	}
}

func TestContract_HoursToExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Contract{Expiry: now.Add(90 * time.Minute)}
	assert.InDelta(t, 1.5, c.HoursToExpiry(now), 1e-12)
	assert.Zero(t, c.HoursToExpiry(now.Add(2*time.Hour)))
}

func TestBracket_MidPrice(t *testing.T) {
	b := Bracket{Bid: NewQuote(0.10), Ask: NewQuote(0.14)}
	mid, ok := b.MidPrice()
	assert.True(t, ok)
	assert.InDelta(t, 0.12, mid, 1e-12)

	b.Mid = NewQuote(0.11)
	mid, _ = b.MidPrice()
	assert.InDelta(t, 0.11, mid, 1e-12)

	_, ok = Bracket{Bid: NewQuote(0.10)}.MidPrice()
	assert.False(t, ok)
	assert.False(t, Bracket{Bid: NewQuote(0), Ask: NewQuote(0.02)}.TwoSided())
}
