package domain

// ModelID identifica el modelo que produjo una estimación de fair value.
type ModelID string

const (
	ModelStatistical ModelID = "statistical" // Black-Scholes digital
	ModelSynthetic   ModelID = "synthetic"   // curva de brackets cross-market
)

// FairValueEstimate es la probabilidad YES estimada por un modelo.
type FairValueEstimate struct {
	Model       ModelID
	Probability float64            // en [0,1]
	Stats       map[string]float64 // datos de soporte (d2, vol, floor, ...)
}

// EnsembleEstimate es la combinación ponderada de las estimaciones disponibles.
// Los pesos suman 1 sobre los modelos presentes.
type EnsembleEstimate struct {
	Probability float64
	Weights     map[ModelID]float64
	Components  []FairValueEstimate
}

// Component devuelve la estimación de un modelo si participó en el blend.
func (e EnsembleEstimate) Component(id ModelID) (FairValueEstimate, bool) {
	for _, c := range e.Components {
		if c.Model == id {
			return c, true
		}
	}
	return FairValueEstimate{}, false
}
