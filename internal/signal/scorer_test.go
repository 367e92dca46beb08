package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testScorer() *Scorer {
	return NewScorer(ScoreConfig{
		MinScore:     20,
		MaxScore:     95,
		VelocityRef:  0.001,
		SpreadRef:    0.04,
		ConsensusRef: 0.10,
		StaleAfter:   10 * time.Minute,
	})
}

func TestScore_Components(t *testing.T) {
	sc := testScorer().Score(ScoreInputs{
		Velocity: -0.0005, HasVelocity: true,
		SpreadHere: 0.04, SpreadThere: 0.02, HasThere: true,
		ModelGap: 0.05, HasConsensus: true,
		QuoteAge: 5 * time.Minute, HasQuoteAge: true,
	})
	assert.InDelta(t, 15.0, sc.Velocity, 1e-9)
	assert.InDelta(t, 12.5, sc.SpreadDiff, 1e-9)
	assert.InDelta(t, 12.5, sc.Consensus, 1e-9)
	assert.InDelta(t, 10.0, sc.Freshness, 1e-9)
	assert.InDelta(t, 50.0, sc.Total, 1e-9)
}

func TestScore_MissingInputsContributeNothing(t *testing.T) {
	sc := testScorer().Score(ScoreInputs{})
	assert.Equal(t, 0.0, sc.Total)
}

func TestScore_Saturates(t *testing.T) {
	s := testScorer()
	sc := s.Score(ScoreInputs{
		Velocity: 1, HasVelocity: true,
		SpreadHere: 1, SpreadThere: 0, HasThere: true,
		ModelGap: 0, HasConsensus: true,
		QuoteAge: 0, HasQuoteAge: true,
	})
	assert.Equal(t, 100.0, sc.Total)

	ok, tooLow := s.Gate(sc)
	assert.False(t, ok, "perfect scores hit the sanity ceiling")
	assert.False(t, tooLow)
}

func TestScore_TightHereWideThereIsNotAnOpportunity(t *testing.T) {
	sc := testScorer().Score(ScoreInputs{SpreadHere: 0.01, SpreadThere: 0.05, HasThere: true})
	assert.Equal(t, 0.0, sc.SpreadDiff)
}

func TestScore_StaleQuotePenalized(t *testing.T) {
	sc := testScorer().Score(ScoreInputs{QuoteAge: time.Hour, HasQuoteAge: true})
	assert.Equal(t, 0.0, sc.Freshness)
}
