// Package engine arma los componentes de pricing, señales y posiciones que
// comparten los drivers (polling en vivo y replay).
package engine

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/edgebot/config"
	"github.com/alejandrodnm/edgebot/internal/ports"
	"github.com/alejandrodnm/edgebot/internal/position"
	"github.com/alejandrodnm/edgebot/internal/pricing"
	"github.com/alejandrodnm/edgebot/internal/signal"
)

// Core es el estado de decisión de un engine. Cada driver tiene el suyo:
// nada aquí es global.
type Core struct {
	Vol       *pricing.VolatilityTracker
	Pricer    pricing.Pricer
	Brackets  *pricing.BracketBook
	Blender   *pricing.EnsembleBlender
	Velocity  *signal.VelocityTracker
	Scorer    *signal.Scorer
	Generator *signal.Generator
	Positions *position.Manager

	StrikeTolerance float64
	VelocityWindow  time.Duration
}

// BuildCore construye un Core desde la configuración validada. El Manager
// queda con un wallet nuevo; llamar a Positions.Restore para retomar el store.
func BuildCore(cfg *config.Config, store ports.TradeStore) (*Core, error) {
	blender, err := pricing.NewEnsembleBlender(cfg.Weights())
	if err != nil {
		return nil, fmt.Errorf("engine.BuildCore: ensemble: %w", err)
	}
	fill, err := position.NewFillModel(cfg.FillConfig())
	if err != nil {
		return nil, fmt.Errorf("engine.BuildCore: fill: %w", err)
	}
	scorer := signal.NewScorer(cfg.ScoreConfig())

	return &Core{
		Vol:             pricing.NewVolatilityTracker(cfg.VolatilityConfig()),
		Pricer:          pricing.NewPricer(cfg.Pricing.LognormalDrift),
		Brackets:        pricing.NewBracketBook(),
		Blender:         blender,
		Velocity:        signal.NewVelocityTracker(cfg.Score.VelocityHistory),
		Scorer:          scorer,
		Generator:       signal.NewGenerator(cfg.SignalConfig(), scorer),
		Positions:       position.NewManager(cfg.PositionConfig(), fill, cfg.SettlementClassifier(), store),
		StrikeTolerance: cfg.Pricing.StrikeMatchTolerance,
		VelocityWindow:  time.Duration(cfg.Score.VelocityWindowSeconds) * time.Second,
	}, nil
}

// TruncateStr trunca un string a maxLen caracteres añadiendo "..." si es necesario.
func TruncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
