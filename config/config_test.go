package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/position"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 1.0, cfg.Pricing.EnsembleWeights["statistical"]+cfg.Pricing.EnsembleWeights["synthetic"], 1e-12)
}

func TestLoad_ExampleYAML(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)

	def := Default()
	require.NoError(t, def.Validate())
	assert.Equal(t, def.Trading, cfg.Trading)
	assert.Equal(t, def.Score, cfg.Score)
	assert.Equal(t, 30*time.Second, cfg.Interval())
}

func TestLoad_PartialYAMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, "edgebot.yaml", `
trading:
  min_edge: 0.05
pricing:
  ensemble_weights:
    synthetic: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Trading.MinEdge)
	assert.Equal(t, Default().Trading.FeePerSide, cfg.Trading.FeePerSide)
	// los pesos del archivo reemplazan a los de defecto
	assert.Equal(t, map[string]float64{"synthetic": 1}, cfg.Pricing.EnsembleWeights)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "edgebot.toml", `
[trading]
max_concurrent_positions = 2
per_market_cooldown_seconds = 60

[fill]
model = "idealized"

[pricing.ensemble_weights]
statistical = 3
synthetic = 1

[[feed.series]]
ticker = "KXETHD"
asset = "ETH"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Trading.MaxConcurrentPositions)
	assert.Equal(t, position.FillIdealized, cfg.Fill.Model)
	assert.InDelta(t, 0.75, cfg.Weights()[domain.ModelStatistical], 1e-12)
	assert.Equal(t, []SeriesConfig{{Ticker: "KXETHD", Asset: "ETH"}}, cfg.Feed.Series)
	assert.Equal(t, time.Minute, cfg.PositionConfig().Cooldown)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("EDGEBOT_DSN", ":memory:")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Trading.MaxConcurrentPositions = 0
	cfg.Trading.StopLossWidth = 1.5
	cfg.Fill.Model = "magic"
	cfg.Settlement.Low = 0.95

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	for _, key := range []string{"max_concurrent_positions", "stop_loss_width", "fill.model", "settlement thresholds"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate_Weights(t *testing.T) {
	cfg := Default()
	cfg.Pricing.EnsembleWeights = map[string]float64{"statistical": 0, "synthetic": 0}
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidInput)

	cfg.Pricing.EnsembleWeights = map[string]float64{"oracle": 1}
	assert.ErrorContains(t, cfg.Validate(), "unknown model")
}

func TestMappers(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	pc := cfg.PositionConfig()
	assert.Equal(t, 4*time.Hour, pc.MaxHold)
	assert.Equal(t, 10*time.Minute, pc.MinTimeToExpiry)
	assert.Equal(t, cfg.Trading.FeePerSide, cfg.SignalConfig().FeePerSide)
	assert.Equal(t, 30*time.Minute, cfg.ScoreConfig().StaleAfter)
	assert.Equal(t, 500, cfg.VolatilityConfig().Capacity)
	assert.Equal(t, position.BasisQuote, cfg.SettlementClassifier().Basis)

	_, err := position.NewFillModel(cfg.FillConfig())
	assert.NoError(t, err)
}
