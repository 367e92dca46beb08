package signal

import (
	"math"
	"sync"
	"time"
)

type pricePoint struct {
	price float64
	at    time.Time
}

// VelocityTracker guarda un historial acotado de precios por clave
// (activo o mercado) para medir la velocidad reciente del precio.
type VelocityTracker struct {
	capacity int
	history  map[string][]pricePoint
	mu       sync.Mutex
}

// NewVelocityTracker crea un tracker que retiene capacity puntos por clave.
func NewVelocityTracker(capacity int) *VelocityTracker {
	if capacity < 2 {
		capacity = 2
	}
	return &VelocityTracker{capacity: capacity, history: make(map[string][]pricePoint)}
}

// Track registra un precio. Puntos fuera de orden o no positivos se ignoran.
func (vt *VelocityTracker) Track(key string, price float64, at time.Time) {
	if !(price > 0) || math.IsInf(price, 0) {
		return
	}
	vt.mu.Lock()
	defer vt.mu.Unlock()

	pts := vt.history[key]
	if n := len(pts); n > 0 && !at.After(pts[n-1].at) {
		return
	}
	pts = append(pts, pricePoint{price: price, at: at})
	if len(pts) > vt.capacity {
		pts = pts[len(pts)-vt.capacity:]
	}
	vt.history[key] = pts
}

// Velocity devuelve el cambio relativo por minuto entre el punto más antiguo
// dentro de la ventana y el más reciente. ok=false sin dos puntos en la ventana.
func (vt *VelocityTracker) Velocity(key string, window time.Duration) (float64, bool) {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	pts := vt.history[key]
	if len(pts) < 2 {
		return 0, false
	}
	last := pts[len(pts)-1]
	cutoff := last.at.Add(-window)
	first := -1
	for i, p := range pts[:len(pts)-1] {
		if !p.at.Before(cutoff) {
			first = i
			break
		}
	}
	if first < 0 {
		return 0, false
	}
	start := pts[first]
	minutes := last.at.Sub(start.at).Minutes()
	if minutes <= 0 {
		return 0, false
	}
	return (last.price - start.price) / start.price / minutes, true
}

// Reset borra el historial de todas las claves.
func (vt *VelocityTracker) Reset() {
	vt.mu.Lock()
	vt.history = make(map[string][]pricePoint)
	vt.mu.Unlock()
}
