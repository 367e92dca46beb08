package position

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

func TestGrossPnL(t *testing.T) {
	tests := []struct {
		name  string
		dir   domain.Direction
		entry float64
		exit  float64
		want  float64
	}{
		{"yes gana", domain.DirectionYes, 0.46, 0.48, 0.02 * 50 / 0.46},
		{"yes pierde", domain.DirectionYes, 0.50, 0.40, -10},
		{"no gana si YES baja", domain.DirectionNo, 0.60, 0.50, 0.10 * 50 / 0.40},
		{"no pierde si YES sube", domain.DirectionNo, 0.60, 0.70, -0.10 * 50 / 0.40},
		{"yes settlement 1", domain.DirectionYes, 0.40, 1, 0.60 * 50 / 0.40},
		{"sin dirección", domain.DirectionNone, 0.40, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, GrossPnL(tt.dir, tt.entry, tt.exit, 50), 1e-9)
		})
	}
}

func TestNetPnL_FlatTradeLosesFees(t *testing.T) {
	for _, dir := range []domain.Direction{domain.DirectionYes, domain.DirectionNo} {
		gross, fees, net := NetPnL(dir, 0.37, 0.37, 100, 0.0006)
		assert.Zero(t, gross)
		assert.InDelta(t, 0.12, fees, 1e-12)
		assert.Less(t, net, 0.0)
	}
}

func TestNetPnL_Scenario(t *testing.T) {
	gross, fees, net := NetPnL(domain.DirectionYes, 0.46, 0.48, 50, 0.0006)
	assert.InDelta(t, 2.17, gross, 0.01)
	assert.Greater(t, fees, 0.0)
	assert.Less(t, net, gross)
	assert.InDelta(t, 2.11, net, 0.01)
}

func TestNetPnL_Clamped(t *testing.T) {
	// entrada YES a 0.02 que liquida a 1: 49x bruto, acotado a 10x
	_, _, net := NetPnL(domain.DirectionYes, 0.02, 1, 10, 0)
	assert.Equal(t, 100.0, net)

	_, _, net = NetPnL(domain.DirectionYes, 0.50, 0, 10, 0.01)
	assert.Equal(t, -10.0, net)
}
