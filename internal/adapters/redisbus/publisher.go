// Package redisbus publica las señales accionables en Redis: Pub/Sub para
// consumidores en vivo y un stream acotado para los que llegan tarde.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// streamMaxLen es el tamaño aproximado del stream (XADD MAXLEN ~).
const streamMaxLen int64 = 10000

// Config agrupa los parámetros de conexión y los nombres de canal.
type Config struct {
	Addr       string
	Password   string
	DB         int
	Channel    string
	Stream     string
	MaxRetries int
}

// Publisher implementa ports.SignalSink.
type Publisher struct {
	rdb     *redis.Client
	channel string
	stream  string
}

// New conecta con Redis y verifica la conexión con un PING.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: cfg.MaxRetries,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisbus.New: ping %s: %w", cfg.Addr, err)
	}
	return &Publisher{rdb: rdb, channel: cfg.Channel, stream: cfg.Stream}, nil
}

// message es el formato JSON publicado.
type message struct {
	MarketID          string    `json:"market_id"`
	Direction         string    `json:"direction"`
	RawEdge           float64   `json:"raw_edge"`
	NetEdge           float64   `json:"net_edge"`
	FairValue         float64   `json:"fair_value"`
	AssumedEntryPrice float64   `json:"assumed_entry_price"`
	KellyFraction     float64   `json:"kelly_fraction"`
	Score             float64   `json:"score"`
	Actionable        bool      `json:"actionable"`
	Reason            string    `json:"reason,omitempty"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Encode serializa una señal al formato publicado.
func Encode(s domain.Signal) ([]byte, error) {
	return json.Marshal(message{
		MarketID:          s.MarketID,
		Direction:         string(s.Direction),
		RawEdge:           s.RawEdge,
		NetEdge:           s.NetEdge,
		FairValue:         s.FairValue,
		AssumedEntryPrice: s.AssumedEntryPrice,
		KellyFraction:     s.KellyFraction,
		Score:             s.Score,
		Actionable:        s.Actionable,
		Reason:            string(s.Reason),
		GeneratedAt:       s.GeneratedAt.UTC(),
	})
}

// Publish envía las señales en un único pipeline.
func (p *Publisher) Publish(ctx context.Context, signals []domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, s := range signals {
		payload, err := Encode(s)
		if err != nil {
			return fmt.Errorf("redisbus.Publish: encode %s: %w", s.MarketID, err)
		}
		if p.channel != "" {
			pipe.Publish(ctx, p.channel, payload)
		}
		if p.stream != "" {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: p.stream,
				MaxLen: streamMaxLen,
				Approx: true,
				Values: map[string]any{"market_id": s.MarketID, "payload": payload},
			})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisbus.Publish: %d signals: %w", len(signals), err)
	}
	return nil
}

// Close cierra la conexión.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
