package signal

import (
	"math"
	"time"
)

// Pesos de cada componente del score compuesto (suman 100).
const (
	weightVelocity  = 30.0
	weightSpread    = 25.0
	weightConsensus = 25.0
	weightFreshness = 20.0
)

// ScoreConfig controla el score de oportunidades.
type ScoreConfig struct {
	MinScore     float64       // piso para ser accionable
	MaxScore     float64       // techo de sanidad: por encima, inputs corruptos
	VelocityRef  float64       // |cambio relativo por minuto| que satura el componente
	SpreadRef    float64       // diferencia de spread que satura el componente
	ConsensusRef float64       // desacuerdo entre modelos que anula el componente
	StaleAfter   time.Duration // antigüedad del último trade que anula la frescura
}

// ScoreInputs son las observaciones del tick. Los componentes sin dato
// aportan 0: el score nunca inventa información.
type ScoreInputs struct {
	Velocity     float64 // en el venue de referencia (spot)
	HasVelocity  bool
	SpreadHere   float64
	SpreadThere  float64 // spread de la curva escalera en el strike
	HasThere     bool
	ModelGap     float64 // |estadístico - sintético|
	HasConsensus bool
	QuoteAge     time.Duration
	HasQuoteAge  bool
}

// Score es el score compuesto 0-100 con su desglose.
type Score struct {
	Total      float64
	Velocity   float64
	SpreadDiff float64
	Consensus  float64
	Freshness  float64
}

// Scorer calcula el score compuesto de una oportunidad.
type Scorer struct {
	cfg ScoreConfig
}

// NewScorer crea un Scorer.
func NewScorer(cfg ScoreConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score combina velocidad, diferencial de spread cross-venue, consenso
// entre modelos y frescura de la cotización.
func (s *Scorer) Score(in ScoreInputs) Score {
	var sc Score
	if in.HasVelocity && s.cfg.VelocityRef > 0 {
		sc.Velocity = weightVelocity * clamp01(math.Abs(in.Velocity)/s.cfg.VelocityRef)
	}
	// spread ancho aquí y estrecho allá: la cotización local está atrasada
	if in.HasThere && s.cfg.SpreadRef > 0 {
		sc.SpreadDiff = weightSpread * clamp01((in.SpreadHere-in.SpreadThere)/s.cfg.SpreadRef)
	}
	if in.HasConsensus && s.cfg.ConsensusRef > 0 {
		sc.Consensus = weightConsensus * clamp01(1-in.ModelGap/s.cfg.ConsensusRef)
	}
	if in.HasQuoteAge && s.cfg.StaleAfter > 0 {
		sc.Freshness = weightFreshness * clamp01(1-float64(in.QuoteAge)/float64(s.cfg.StaleAfter))
	}
	sc.Total = sc.Velocity + sc.SpreadDiff + sc.Consensus + sc.Freshness
	return sc
}

// Gate indica si el score está dentro de [MinScore, MaxScore].
func (s *Scorer) Gate(sc Score) (ok, tooLow bool) {
	if sc.Total < s.cfg.MinScore {
		return false, true
	}
	if s.cfg.MaxScore > 0 && sc.Total > s.cfg.MaxScore {
		return false, false
	}
	return true, false
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
