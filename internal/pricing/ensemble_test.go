package pricing

import (
	"testing"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func est(id domain.ModelID, p float64) domain.FairValueEstimate {
	return domain.FairValueEstimate{Model: id, Probability: p}
}

func newBlender(t *testing.T, stat, syn float64) *EnsembleBlender {
	t.Helper()
	b, err := NewEnsembleBlender(map[domain.ModelID]float64{
		domain.ModelStatistical: stat,
		domain.ModelSynthetic:   syn,
	})
	require.NoError(t, err)
	return b
}

func TestBlend_NoEstimates_Unavailable(t *testing.T) {
	_, ok := newBlender(t, 0.6, 0.4).Blend()
	assert.False(t, ok)
}

func TestBlend_SingleModel_Renormalized(t *testing.T) {
	e, ok := newBlender(t, 0.6, 0.4).Blend(est(domain.ModelSynthetic, 0.37))
	require.True(t, ok)
	assert.Equal(t, 0.37, e.Probability)
	assert.Equal(t, 1.0, e.Weights[domain.ModelSynthetic])
}

func TestBlend_EqualProbabilities_Exact(t *testing.T) {
	b := newBlender(t, 0.6, 0.4)
	for _, p := range []float64{0.1, 0.3, 0.7, 0.123456789, 0.99} {
		e, ok := b.Blend(est(domain.ModelStatistical, p), est(domain.ModelSynthetic, p))
		require.True(t, ok)
		assert.Equal(t, p, e.Probability)
	}
}

func TestBlend_WeightedMean(t *testing.T) {
	e, ok := newBlender(t, 3, 1).Blend(est(domain.ModelStatistical, 0.8), est(domain.ModelSynthetic, 0.4))
	require.True(t, ok)
	assert.InDelta(t, 0.7, e.Probability, 1e-12)
	assert.InDelta(t, 1.0, e.Weights[domain.ModelStatistical]+e.Weights[domain.ModelSynthetic], 1e-12)
	_, has := e.Component(domain.ModelSynthetic)
	assert.True(t, has)
}

func TestBlend_ZeroWeightModelIgnored(t *testing.T) {
	_, ok := newBlender(t, 1, 0).Blend(est(domain.ModelSynthetic, 0.4))
	assert.False(t, ok)

	e, ok := newBlender(t, 1, 0).Blend(est(domain.ModelStatistical, 0.6), est(domain.ModelSynthetic, 0.4))
	require.True(t, ok)
	assert.Equal(t, 0.6, e.Probability)
}

func TestNewEnsembleBlender_InvalidWeights(t *testing.T) {
	_, err := NewEnsembleBlender(map[domain.ModelID]float64{domain.ModelStatistical: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewEnsembleBlender(map[domain.ModelID]float64{domain.ModelStatistical: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
