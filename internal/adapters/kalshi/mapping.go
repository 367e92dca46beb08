package kalshi

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

const venue = "kalshi"

// MapEvent traduce los mercados de un evento a ticks canónicos: un tick por
// contrato "above" y, si el evento es una escalera, un tick con sus brackets.
func MapEvent(asset string, markets []Market) []domain.Tick {
	var ticks []domain.Tick
	var ladder *domain.Tick

	for _, m := range markets {
		if !tradable(m.Status) {
			continue
		}
		expiry, ok := parseExpiry(m)
		if !ok {
			slog.Debug("kalshi: market without expiry, skipping", "ticker", m.Ticker)
			continue
		}
		bid := price(m.YesBidDollars, m.YesBid)
		ask := price(m.YesAskDollars, m.YesAsk)

		switch m.StrikeType {
		case "greater", "greater_or_equal", "above":
			if m.FloorStrike == nil {
				continue
			}
			ticks = append(ticks, domain.Tick{
				Asset:  asset,
				Expiry: expiry,
				Contract: &domain.Contract{
					MarketID: m.Ticker,
					Venue:    venue,
					Asset:    asset,
					Strike:   *m.FloorStrike,
					Expiry:   expiry,
					Bid:      bid,
					Ask:      ask,
					Last:     price(m.LastPriceDollars, m.LastPrice),
					Volume:   m.Volume,
				},
			})
		case "between":
			if m.FloorStrike == nil || m.CapStrike == nil {
				continue
			}
			if ladder == nil {
				ladder = &domain.Tick{Asset: asset, Expiry: expiry}
			}
			ladder.Brackets = append(ladder.Brackets, domain.Bracket{
				MarketID:     m.Ticker,
				FloorStrike:  *m.FloorStrike,
				CapStrike:    *m.CapStrike,
				StrikeType:   domain.StrikeBetween,
				Bid:          bid,
				Ask:          ask,
				Volume:       m.Volume,
				OpenInterest: m.OpenInterest,
			})
		}
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Contract.MarketID < ticks[j].Contract.MarketID })
	if ladder != nil {
		sort.Slice(ladder.Brackets, func(i, j int) bool {
			return ladder.Brackets[i].FloorStrike < ladder.Brackets[j].FloorStrike
		})
		ticks = append([]domain.Tick{*ladder}, ticks...)
	}
	return ticks
}

// price prefiere el string en dólares (sub-penny) y cae a los centavos.
// Si ninguno se resuelve, el precio queda desconocido.
func price(dollars string, cents *int) domain.Quote {
	if s := strings.TrimSpace(dollars); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 && v <= 1 {
			return domain.NewQuote(v)
		}
	}
	if cents != nil && *cents >= 0 && *cents <= 100 {
		return domain.NewQuote(float64(*cents) / 100)
	}
	return domain.Quote{}
}

func parseExpiry(m Market) (time.Time, bool) {
	for _, s := range []string{m.CloseTime, m.ExpirationTime} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func tradable(status string) bool {
	switch status {
	case "", "active", "open":
		return true
	default:
		return false
	}
}
