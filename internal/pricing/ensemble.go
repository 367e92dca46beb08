package pricing

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// EnsembleBlender combina las estimaciones disponibles con pesos por modelo.
type EnsembleBlender struct {
	weights map[domain.ModelID]float64
}

// NewEnsembleBlender valida los pesos: no negativos y al menos uno positivo.
func NewEnsembleBlender(weights map[domain.ModelID]float64) (*EnsembleBlender, error) {
	var total float64
	w := make(map[domain.ModelID]float64, len(weights))
	for id, v := range weights {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("pricing.NewEnsembleBlender: weight %s=%v: %w", id, v, domain.ErrInvalidInput)
		}
		w[id] = v
		total += v
	}
	if total <= 0 {
		return nil, fmt.Errorf("pricing.NewEnsembleBlender: no positive weight: %w", domain.ErrInvalidInput)
	}
	return &EnsembleBlender{weights: w}, nil
}

// Blend devuelve la media ponderada renormalizada a los modelos presentes.
// Sin estimaciones utilizables devuelve ok=false: nunca un 0.5 ficticio.
func (b *EnsembleBlender) Blend(estimates ...domain.FairValueEstimate) (domain.EnsembleEstimate, bool) {
	used := make([]domain.FairValueEstimate, 0, len(estimates))
	seen := make(map[domain.ModelID]bool, len(estimates))
	var total float64
	for _, e := range estimates {
		w := b.weights[e.Model]
		if w <= 0 || seen[e.Model] || math.IsNaN(e.Probability) {
			continue
		}
		seen[e.Model] = true
		used = append(used, e)
		total += w
	}
	if len(used) == 0 {
		return domain.EnsembleEstimate{}, false
	}
	sort.Slice(used, func(i, j int) bool { return used[i].Model < used[j].Model })

	// Se promedia la desviación respecto de la primera estimación: con
	// probabilidades iguales el resultado es exactamente esa probabilidad.
	ref := used[0].Probability
	var dev float64
	weights := make(map[domain.ModelID]float64, len(used))
	for _, e := range used {
		w := b.weights[e.Model] / total
		weights[e.Model] = w
		dev += w * (e.Probability - ref)
	}
	p := math.Min(1, math.Max(0, ref+dev))
	return domain.EnsembleEstimate{Probability: p, Weights: weights, Components: used}, true
}
