package pricing

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

const secondsPerYear = hoursPerYear * 3600

// VolatilityConfig controla el tracker de volatilidad realizada.
type VolatilityConfig struct {
	Capacity   int     // muestras retenidas por activo
	MinSamples int     // por debajo se devuelve Default
	Default    float64 // volatilidad anualizada de fallback
}

// VolEstimate es la volatilidad anualizada estimada para un activo.
// Con Supported=false el valor es el fallback configurado y los
// callers no deben tratarlo como una medición.
type VolEstimate struct {
	Annualized float64
	Samples    int
	AvgGap     time.Duration
	Supported  bool
}

// ring es un buffer circular de muestras ordenadas por tiempo.
type ring struct {
	buf  []domain.SpotSample
	head int // índice de la muestra más antigua
	n    int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]domain.SpotSample, capacity)}
}

func (r *ring) push(s domain.SpotSample) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) at(i int) domain.SpotSample {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) last() (domain.SpotSample, bool) {
	if r.n == 0 {
		return domain.SpotSample{}, false
	}
	return r.at(r.n - 1), true
}

// VolatilityTracker mantiene el historial acotado de precios spot por activo.
type VolatilityTracker struct {
	cfg    VolatilityConfig
	series map[string]*ring
	mu     sync.RWMutex
}

// NewVolatilityTracker crea un tracker vacío.
func NewVolatilityTracker(cfg VolatilityConfig) *VolatilityTracker {
	// stdev muestral necesita al menos dos retornos
	if cfg.MinSamples < 3 {
		cfg.MinSamples = 3
	}
	if cfg.Capacity < cfg.MinSamples {
		cfg.Capacity = cfg.MinSamples
	}
	return &VolatilityTracker{cfg: cfg, series: make(map[string]*ring)}
}

// Add agrega una muestra. Precios no positivos se rechazan; muestras con
// timestamp no posterior al último se descartan para mantener el orden.
func (vt *VolatilityTracker) Add(s domain.SpotSample) error {
	if !(s.Price > 0) || math.IsInf(s.Price, 0) {
		return fmt.Errorf("pricing.VolatilityTracker.Add: %s price %v: %w", s.Asset, s.Price, domain.ErrInvalidInput)
	}
	if s.Asset == "" {
		return fmt.Errorf("pricing.VolatilityTracker.Add: empty asset: %w", domain.ErrInvalidInput)
	}

	vt.mu.Lock()
	defer vt.mu.Unlock()

	r, ok := vt.series[s.Asset]
	if !ok {
		r = newRing(vt.cfg.Capacity)
		vt.series[s.Asset] = r
	}
	if last, ok := r.last(); ok && !s.Timestamp.After(last.Timestamp) {
		return nil
	}
	r.push(s)
	return nil
}

// Latest devuelve la última muestra del activo.
func (vt *VolatilityTracker) Latest(asset string) (domain.SpotSample, bool) {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	r, ok := vt.series[asset]
	if !ok {
		return domain.SpotSample{}, false
	}
	return r.last()
}

// Samples devuelve una copia de las muestras del activo, de la más antigua a la más nueva.
func (vt *VolatilityTracker) Samples(asset string) []domain.SpotSample {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	r, ok := vt.series[asset]
	if !ok {
		return nil
	}
	out := make([]domain.SpotSample, r.n)
	for i := range out {
		out[i] = r.at(i)
	}
	return out
}

// Estimate calcula stdev(retornos log consecutivos) × √(periodos/año), con
// periodos/año derivado del gap medio observado entre muestras.
func (vt *VolatilityTracker) Estimate(asset string) VolEstimate {
	vt.mu.RLock()
	defer vt.mu.RUnlock()

	fallback := VolEstimate{Annualized: vt.cfg.Default}
	r, ok := vt.series[asset]
	if !ok {
		return fallback
	}
	fallback.Samples = r.n
	if r.n < vt.cfg.MinSamples {
		return fallback
	}

	first, last := r.at(0), r.at(r.n-1)
	avgGap := last.Timestamp.Sub(first.Timestamp) / time.Duration(r.n-1)
	if avgGap <= 0 {
		return fallback
	}

	returns := make([]float64, 0, r.n-1)
	for i := 1; i < r.n; i++ {
		returns = append(returns, math.Log(r.at(i).Price/r.at(i-1).Price))
	}
	var mean float64
	for _, x := range returns {
		mean += x
	}
	mean /= float64(len(returns))
	var ss float64
	for _, x := range returns {
		ss += (x - mean) * (x - mean)
	}
	stdev := math.Sqrt(ss / float64(len(returns)-1))

	periodsPerYear := secondsPerYear / avgGap.Seconds()
	return VolEstimate{
		Annualized: stdev * math.Sqrt(periodsPerYear),
		Samples:    r.n,
		AvgGap:     avgGap,
		Supported:  true,
	}
}

// Reset borra el historial de un activo, o de todos si asset es "".
func (vt *VolatilityTracker) Reset(asset string) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if asset == "" {
		vt.series = make(map[string]*ring)
		return
	}
	delete(vt.series, asset)
}
