package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/position"
	"github.com/alejandrodnm/edgebot/internal/pricing"
	"github.com/alejandrodnm/edgebot/internal/signal"
)

// Config es la configuración completa del bot.
type Config struct {
	Trading    TradingConfig    `yaml:"trading" toml:"trading"`
	Pricing    PricingConfig    `yaml:"pricing" toml:"pricing"`
	Score      ScoreConfig      `yaml:"score" toml:"score"`
	Fill       FillConfig       `yaml:"fill" toml:"fill"`
	Settlement SettlementConfig `yaml:"settlement" toml:"settlement"`
	Feed       FeedConfig       `yaml:"feed" toml:"feed"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Redis      RedisConfig      `yaml:"redis" toml:"redis"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
	Log        LogConfig        `yaml:"log" toml:"log"`
}

// TradingConfig agrupa fees, sizing, límites de riesgo y reglas de salida.
type TradingConfig struct {
	FeePerSide               float64 `yaml:"fee_per_side" toml:"fee_per_side"`
	MinEdge                  float64 `yaml:"min_edge" toml:"min_edge"`
	KellyFractionMultiplier  float64 `yaml:"kelly_fraction_multiplier" toml:"kelly_fraction_multiplier"`
	MaxKellyFraction         float64 `yaml:"max_kelly_fraction" toml:"max_kelly_fraction"`
	MaxPositionFraction      float64 `yaml:"max_position_fraction_of_wallet" toml:"max_position_fraction_of_wallet"`
	MinPositionSize          float64 `yaml:"min_position_size" toml:"min_position_size"`
	MaxConcurrentPositions   int     `yaml:"max_concurrent_positions" toml:"max_concurrent_positions"`
	PerMarketCooldownSeconds int     `yaml:"per_market_cooldown_seconds" toml:"per_market_cooldown_seconds"`
	MinSecondsToExpiry       int     `yaml:"min_seconds_to_expiry" toml:"min_seconds_to_expiry"`
	TakeProfitBuffer         float64 `yaml:"take_profit_buffer" toml:"take_profit_buffer"`
	StopLossWidth            float64 `yaml:"stop_loss_width" toml:"stop_loss_width"`
	StopDecayStart           float64 `yaml:"stop_decay_start" toml:"stop_decay_start"` // fracción de max hold
	MaxHoldSeconds           int     `yaml:"max_hold_seconds" toml:"max_hold_seconds"`
	ConvergenceTarget        float64 `yaml:"convergence_target" toml:"convergence_target"`
	InitialBalance           float64 `yaml:"initial_balance" toml:"initial_balance"`
}

// PricingConfig controla volatilidad, pricer y ensemble.
type PricingConfig struct {
	DefaultVolatility    float64            `yaml:"default_volatility" toml:"default_volatility"`
	VolatilitySamples    int                `yaml:"volatility_samples" toml:"volatility_samples"`
	MinVolatilitySamples int                `yaml:"min_volatility_samples" toml:"min_volatility_samples"`
	LognormalDrift       bool               `yaml:"lognormal_drift" toml:"lognormal_drift"`
	EnsembleWeights      map[string]float64 `yaml:"ensemble_weights" toml:"ensemble_weights"`
	StrikeMatchTolerance float64            `yaml:"strike_match_tolerance" toml:"strike_match_tolerance"`
}

// ScoreConfig controla el score compuesto.
type ScoreConfig struct {
	MinScore              float64 `yaml:"min_score" toml:"min_score"`
	MaxScore              float64 `yaml:"max_score" toml:"max_score"`
	VelocityRef           float64 `yaml:"velocity_ref" toml:"velocity_ref"`
	SpreadRef             float64 `yaml:"spread_ref" toml:"spread_ref"`
	ConsensusRef          float64 `yaml:"consensus_ref" toml:"consensus_ref"`
	StaleAfterSeconds     int     `yaml:"stale_after_seconds" toml:"stale_after_seconds"`
	VelocityWindowSeconds int     `yaml:"velocity_window_seconds" toml:"velocity_window_seconds"`
	VelocityHistory       int     `yaml:"velocity_history" toml:"velocity_history"`
}

// FillConfig selecciona el modelo de fill.
type FillConfig struct {
	Model         string  `yaml:"model" toml:"model"` // realistic | idealized
	SlippageCoeff float64 `yaml:"slippage_coeff" toml:"slippage_coeff"`
	SlippageExp   float64 `yaml:"slippage_exp" toml:"slippage_exp"`
	MaxSlippage   float64 `yaml:"max_slippage" toml:"max_slippage"`
	MakerOffset   float64 `yaml:"maker_offset" toml:"maker_offset"`
}

// SettlementConfig fija los umbrales del settlement al vencimiento.
type SettlementConfig struct {
	Basis string  `yaml:"basis" toml:"basis"` // quote | mid
	High  float64 `yaml:"high" toml:"high"`
	Low   float64 `yaml:"low" toml:"low"`
}

// FeedConfig contiene los venues y el intervalo de polling.
type FeedConfig struct {
	IntervalSeconds int            `yaml:"interval_seconds" toml:"interval_seconds"`
	Workers         int            `yaml:"workers" toml:"workers"` // eventos descargados en paralelo
	KalshiBase      string         `yaml:"kalshi_base" toml:"kalshi_base"`
	CoinbaseBase    string         `yaml:"coinbase_base" toml:"coinbase_base"`
	Series          []SeriesConfig `yaml:"series" toml:"series"`
}

// SeriesConfig asocia una serie de contratos con su subyacente.
type SeriesConfig struct {
	Ticker string `yaml:"ticker" toml:"ticker"`
	Asset  string `yaml:"asset" toml:"asset"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn" toml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// RedisConfig habilita la publicación de señales. Addr vacío = deshabilitado.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Channel  string `yaml:"channel" toml:"channel"`
	Stream   string `yaml:"stream" toml:"stream"`
}

// MetricsConfig expone /metrics. Listen vacío = deshabilitado.
type MetricsConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
}

// LogConfig controla el formato, nivel y destino del logging.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`   // debug | info | warn | error
	Format     string `yaml:"format" toml:"format"` // text | json
	File       string `yaml:"file" toml:"file"`     // vacío = sólo stdout
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// Default devuelve la configuración con todos los valores explícitos.
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			FeePerSide:               0.0006,
			MinEdge:                  0.03,
			KellyFractionMultiplier:  0.25,
			MaxKellyFraction:         0.10,
			MaxPositionFraction:      0.05,
			MinPositionSize:          5,
			MaxConcurrentPositions:   5,
			PerMarketCooldownSeconds: 900,
			MinSecondsToExpiry:       600,
			TakeProfitBuffer:         0.02,
			StopLossWidth:            0.10,
			StopDecayStart:           0.8,
			MaxHoldSeconds:           4 * 3600,
			ConvergenceTarget:        0.01,
			InitialBalance:           1000,
		},
		Pricing: PricingConfig{
			DefaultVolatility:    0.60,
			VolatilitySamples:    500,
			MinVolatilitySamples: 20,
			LognormalDrift:       true, // ATM < 0.5; ver config.yaml
			EnsembleWeights:      defaultWeights(),
			StrikeMatchTolerance: 500,
		},
		Score: ScoreConfig{
			MinScore:              20,
			MaxScore:              95,
			VelocityRef:           0.001,
			SpreadRef:             0.04,
			ConsensusRef:          0.10,
			StaleAfterSeconds:     1800,
			VelocityWindowSeconds: 300,
			VelocityHistory:       120,
		},
		Fill: FillConfig{
			Model:         position.FillRealistic,
			SlippageCoeff: 0.02,
			SlippageExp:   1.5,
			MaxSlippage:   0.03,
			MakerOffset:   0.001,
		},
		Settlement: SettlementConfig{
			Basis: position.BasisQuote,
			High:  0.90,
			Low:   0.10,
		},
		Feed: FeedConfig{
			IntervalSeconds: 30,
			Workers:         4,
			Series: []SeriesConfig{
				{Ticker: "KXBTCD", Asset: "BTC"},
				{Ticker: "KXBTC", Asset: "BTC"},
			},
		},
		Storage: StorageConfig{DSN: "edgebot.db"},
		Redis:   RedisConfig{Channel: "edgebot:signals", Stream: "edgebot:signals:stream"},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

func defaultWeights() map[string]float64 {
	return map[string]float64{
		string(domain.ModelStatistical): 0.6,
		string(domain.ModelSynthetic):   0.4,
	}
}

// Load carga la configuración desde un archivo YAML o TOML (por extensión)
// sobre Default(), aplica el .env y las variables de entorno, y valida.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := Default()
	// un archivo que define pesos los define todos
	cfg.Pricing.EnsembleWeights = nil

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}
	if len(cfg.Pricing.EnsembleWeights) == 0 {
		cfg.Pricing.EnsembleWeights = defaultWeights()
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("EDGEBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// Validate rechaza valores fuera de rango y normaliza los pesos del ensemble
// para que sumen 1. Devuelve todos los problemas a la vez.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...))
		}
	}

	t := c.Trading
	check(t.FeePerSide >= 0 && t.FeePerSide < 0.1, "trading.fee_per_side %v not in [0, 0.1)", t.FeePerSide)
	check(t.MinEdge >= 0 && t.MinEdge < 1, "trading.min_edge %v not in [0, 1)", t.MinEdge)
	check(t.KellyFractionMultiplier > 0 && t.KellyFractionMultiplier <= 1, "trading.kelly_fraction_multiplier %v not in (0, 1]", t.KellyFractionMultiplier)
	check(t.MaxKellyFraction > 0 && t.MaxKellyFraction <= 1, "trading.max_kelly_fraction %v not in (0, 1]", t.MaxKellyFraction)
	check(t.MaxPositionFraction > 0 && t.MaxPositionFraction <= 1, "trading.max_position_fraction_of_wallet %v not in (0, 1]", t.MaxPositionFraction)
	check(t.MinPositionSize >= 0, "trading.min_position_size %v < 0", t.MinPositionSize)
	check(t.MaxConcurrentPositions > 0, "trading.max_concurrent_positions %d <= 0", t.MaxConcurrentPositions)
	check(t.PerMarketCooldownSeconds >= 0, "trading.per_market_cooldown_seconds %d < 0", t.PerMarketCooldownSeconds)
	check(t.MinSecondsToExpiry >= 0, "trading.min_seconds_to_expiry %d < 0", t.MinSecondsToExpiry)
	check(t.TakeProfitBuffer >= 0 && t.TakeProfitBuffer < 1, "trading.take_profit_buffer %v not in [0, 1)", t.TakeProfitBuffer)
	check(t.StopLossWidth > 0 && t.StopLossWidth < 1, "trading.stop_loss_width %v not in (0, 1)", t.StopLossWidth)
	check(t.StopDecayStart > 0 && t.StopDecayStart <= 1, "trading.stop_decay_start %v not in (0, 1]", t.StopDecayStart)
	check(t.MaxHoldSeconds > 0, "trading.max_hold_seconds %d <= 0", t.MaxHoldSeconds)
	check(t.ConvergenceTarget >= 0, "trading.convergence_target %v < 0", t.ConvergenceTarget)
	check(t.InitialBalance > 0, "trading.initial_balance %v <= 0", t.InitialBalance)

	p := c.Pricing
	check(p.DefaultVolatility > 0, "pricing.default_volatility %v <= 0", p.DefaultVolatility)
	check(p.MinVolatilitySamples >= 3, "pricing.min_volatility_samples %d < 3", p.MinVolatilitySamples)
	check(p.VolatilitySamples >= p.MinVolatilitySamples, "pricing.volatility_samples %d < min_volatility_samples %d", p.VolatilitySamples, p.MinVolatilitySamples)
	check(p.StrikeMatchTolerance >= 0, "pricing.strike_match_tolerance %v < 0", p.StrikeMatchTolerance)
	if err := c.normalizeWeights(); err != nil {
		errs = append(errs, err)
	}

	s := c.Score
	check(s.MinScore >= 0 && s.MinScore <= 100, "score.min_score %v not in [0, 100]", s.MinScore)
	check(s.MaxScore >= s.MinScore && s.MaxScore <= 100, "score.max_score %v not in [min_score, 100]", s.MaxScore)
	check(s.VelocityWindowSeconds > 0, "score.velocity_window_seconds %d <= 0", s.VelocityWindowSeconds)

	check(c.Fill.Model == position.FillRealistic || c.Fill.Model == position.FillIdealized, "fill.model %q", c.Fill.Model)
	check(c.Fill.MaxSlippage >= 0 && c.Fill.SlippageCoeff >= 0, "fill slippage must be >= 0")

	st := c.Settlement
	check(st.Basis == position.BasisQuote || st.Basis == position.BasisMid, "settlement.basis %q", st.Basis)
	check(st.Low >= 0 && st.Low < st.High && st.High <= 1, "settlement thresholds low %v high %v", st.Low, st.High)

	check(c.Feed.IntervalSeconds > 0, "feed.interval_seconds %d <= 0", c.Feed.IntervalSeconds)
	check(c.Feed.Workers > 0, "feed.workers %d <= 0", c.Feed.Workers)
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		check(false, "log.level %q", c.Log.Level)
	}
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format %q", c.Log.Format)

	return errors.Join(errs...)
}

func (c *Config) normalizeWeights() error {
	var total float64
	for id, w := range c.Pricing.EnsembleWeights {
		switch domain.ModelID(id) {
		case domain.ModelStatistical, domain.ModelSynthetic:
		default:
			return fmt.Errorf("%w: pricing.ensemble_weights: unknown model %q", domain.ErrInvalidInput, id)
		}
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: pricing.ensemble_weights.%s = %v", domain.ErrInvalidInput, id, w)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("%w: pricing.ensemble_weights: no positive weight", domain.ErrInvalidInput)
	}
	for id, w := range c.Pricing.EnsembleWeights {
		c.Pricing.EnsembleWeights[id] = w / total
	}
	return nil
}

// Interval devuelve el intervalo de polling como time.Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Feed.IntervalSeconds) * time.Second
}

// PositionConfig traduce la configuración al Manager de posiciones.
func (c *Config) PositionConfig() position.Config {
	t := c.Trading
	return position.Config{
		FeePerSide:             t.FeePerSide,
		MaxPositionFraction:    t.MaxPositionFraction,
		MinPositionSize:        t.MinPositionSize,
		MaxConcurrentPositions: t.MaxConcurrentPositions,
		Cooldown:               seconds(t.PerMarketCooldownSeconds),
		MinTimeToExpiry:        seconds(t.MinSecondsToExpiry),
		TakeProfitBuffer:       t.TakeProfitBuffer,
		StopLossWidth:          t.StopLossWidth,
		StopDecayStart:         t.StopDecayStart,
		MaxHold:                seconds(t.MaxHoldSeconds),
		ConvergenceTarget:      t.ConvergenceTarget,
		InitialBalance:         t.InitialBalance,
	}
}

// FillConfig traduce la sección fill.
func (c *Config) FillConfig() position.FillConfig {
	return position.FillConfig{
		Model:         c.Fill.Model,
		SlippageCoeff: c.Fill.SlippageCoeff,
		SlippageExp:   c.Fill.SlippageExp,
		MaxSlippage:   c.Fill.MaxSlippage,
		MakerOffset:   c.Fill.MakerOffset,
	}
}

// SettlementClassifier traduce la sección settlement.
func (c *Config) SettlementClassifier() position.SettlementClassifier {
	return position.SettlementClassifier{Basis: c.Settlement.Basis, High: c.Settlement.High, Low: c.Settlement.Low}
}

// SignalConfig traduce la configuración al generador de señales.
func (c *Config) SignalConfig() signal.Config {
	return signal.Config{
		FeePerSide:       c.Trading.FeePerSide,
		MinEdge:          c.Trading.MinEdge,
		KellyMultiplier:  c.Trading.KellyFractionMultiplier,
		MaxKellyFraction: c.Trading.MaxKellyFraction,
	}
}

// ScoreConfig traduce la sección score.
func (c *Config) ScoreConfig() signal.ScoreConfig {
	return signal.ScoreConfig{
		MinScore:     c.Score.MinScore,
		MaxScore:     c.Score.MaxScore,
		VelocityRef:  c.Score.VelocityRef,
		SpreadRef:    c.Score.SpreadRef,
		ConsensusRef: c.Score.ConsensusRef,
		StaleAfter:   seconds(c.Score.StaleAfterSeconds),
	}
}

// VolatilityConfig traduce la sección pricing al tracker de volatilidad.
func (c *Config) VolatilityConfig() pricing.VolatilityConfig {
	return pricing.VolatilityConfig{
		Capacity:   c.Pricing.VolatilitySamples,
		MinSamples: c.Pricing.MinVolatilitySamples,
		Default:    c.Pricing.DefaultVolatility,
	}
}

// Weights devuelve los pesos del ensemble por modelo.
func (c *Config) Weights() map[domain.ModelID]float64 {
	out := make(map[domain.ModelID]float64, len(c.Pricing.EnsembleWeights))
	for id, w := range c.Pricing.EnsembleWeights {
		out[domain.ModelID(id)] = w
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
