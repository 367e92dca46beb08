// Package metrics expone contadores Prometheus del engine en un registry propio.
// Un *Recorder nil es válido: todos sus métodos son no-ops.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Recorder agrupa las métricas del engine.
type Recorder struct {
	reg *prometheus.Registry

	signals   *prometheus.CounterVec
	denied    *prometheus.CounterVec
	closed    *prometheus.CounterVec
	pnl       prometheus.Histogram
	ambiguous prometheus.Counter
	open      prometheus.Gauge
	balance   prometheus.Gauge
	drawdown  prometheus.Gauge
}

// NewRecorder registra las métricas en un registry nuevo.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "edgebot_signals_total",
			Help: "Signals generated, by direction and non-actionable reason",
		}, []string{"direction", "reason"}),
		denied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "edgebot_admissions_denied_total",
			Help: "Actionable signals rejected by admission control",
		}, []string{"reason"}),
		closed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "edgebot_trades_closed_total",
			Help: "Closed paper trades by exit reason",
		}, []string{"exit_reason"}),
		pnl: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgebot_trade_pnl_usd",
			Help:    "Net P&L per closed trade",
			Buckets: []float64{-50, -20, -10, -5, -1, 0, 1, 5, 10, 20, 50},
		}),
		ambiguous: f.NewCounter(prometheus.CounterOpts{
			Name: "edgebot_settlement_ambiguous_total",
			Help: "Expired positions whose settlement could not be classified",
		}),
		open: f.NewGauge(prometheus.GaugeOpts{
			Name: "edgebot_open_positions",
			Help: "Open or closing paper positions",
		}),
		balance: f.NewGauge(prometheus.GaugeOpts{
			Name: "edgebot_wallet_balance",
			Help: "Paper wallet balance",
		}),
		drawdown: f.NewGauge(prometheus.GaugeOpts{
			Name: "edgebot_wallet_max_drawdown",
			Help: "Max drawdown of the paper wallet as a fraction of peak",
		}),
	}
}

// Signal cuenta una señal generada.
func (r *Recorder) Signal(s domain.Signal) {
	if r == nil {
		return
	}
	dir := string(s.Direction)
	if dir == "" {
		dir = "none"
	}
	reason := string(s.Reason)
	if s.Actionable {
		reason = "actionable"
	}
	r.signals.WithLabelValues(dir, reason).Inc()
}

// Denied cuenta una admisión rechazada.
func (r *Recorder) Denied(reason domain.DenyReason) {
	if r == nil {
		return
	}
	r.denied.WithLabelValues(string(reason)).Inc()
}

// Closed cuenta un trade cerrado y su pnl.
func (r *Recorder) Closed(t domain.ClosedTrade) {
	if r == nil {
		return
	}
	r.closed.WithLabelValues(string(t.ExitReason)).Inc()
	r.pnl.Observe(t.PnL)
}

// Ambiguous cuenta settlements ambiguos.
func (r *Recorder) Ambiguous(n int) {
	if r == nil {
		return
	}
	r.ambiguous.Add(float64(n))
}

// State actualiza los gauges de posiciones abiertas y wallet.
func (r *Recorder) State(open int, w domain.Wallet) {
	if r == nil {
		return
	}
	r.open.Set(float64(open))
	r.balance.Set(w.Balance)
	r.drawdown.Set(w.MaxDrawdown)
}

// Handler sirve el registry en formato Prometheus.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Registry devuelve el registry, p.ej. para tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}
