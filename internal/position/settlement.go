package position

import (
	"fmt"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Bases de clasificación del settlement.
const (
	BasisQuote = "quote" // bid ≥ high → 1, ask ≤ low → 0
	BasisMid   = "mid"   // mid ≥ high → 1, mid ≤ low → 0
)

// SettlementClassifier decide el payoff YES de un contrato vencido a partir
// de su última cotización. Los umbrales son configurables.
type SettlementClassifier struct {
	Basis string
	High  float64
	Low   float64
}

// Classify devuelve 1 o 0 (payoff YES), o ErrSettlementAmbiguous cuando la
// cotización no está lo bastante cerca de ninguno de los dos extremos.
func (s SettlementClassifier) Classify(c domain.Contract) (float64, error) {
	switch s.Basis {
	case BasisMid:
		if c.Bid.Known && c.Ask.Known {
			mid := c.Mid()
			if mid >= s.High {
				return 1, nil
			}
			if mid <= s.Low {
				return 0, nil
			}
		}
	default:
		if c.Bid.Known && c.Bid.Value >= s.High {
			return 1, nil
		}
		if c.Ask.Known && c.Ask.Value <= s.Low {
			return 0, nil
		}
	}
	return 0, fmt.Errorf("position.Classify: market %s bid=%s ask=%s: %w",
		c.MarketID, fmtQuote(c.Bid), fmtQuote(c.Ask), domain.ErrSettlementAmbiguous)
}

func fmtQuote(q domain.Quote) string {
	if !q.Known {
		return "?"
	}
	return fmt.Sprintf("%.3f", q.Value)
}
