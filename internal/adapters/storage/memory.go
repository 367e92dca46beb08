package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Memory es un TradeStore en memoria para replays y tests.
// Sigue las mismas reglas que SQLiteStorage.
type Memory struct {
	mu     sync.Mutex
	open   map[string]domain.Position
	closed []domain.ClosedTrade
	seen   map[string]bool
	wallet *domain.Wallet
	cycles []domain.CycleSummary
}

// NewMemory crea un store vacío.
func NewMemory() *Memory {
	return &Memory{
		open: make(map[string]domain.Position),
		seen: make(map[string]bool),
	}
}

func (m *Memory) InsertTrade(_ context.Context, p domain.Position) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		return "", fmt.Errorf("storage.Memory.InsertTrade: %w: empty trade id", domain.ErrInvalidInput)
	}
	if m.seen[p.ID] {
		return "", fmt.Errorf("storage.Memory.InsertTrade: %w: duplicate trade id %s", domain.ErrInvalidInput, p.ID)
	}
	m.seen[p.ID] = true
	m.open[p.ID] = p
	return p.ID, nil
}

func (m *Memory) CloseTrade(_ context.Context, t domain.ClosedTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[t.ID]; !ok {
		if m.seen[t.ID] {
			return fmt.Errorf("storage.Memory.CloseTrade: trade %s: %w", t.ID, domain.ErrPositionClosed)
		}
		return fmt.Errorf("storage.Memory.CloseTrade: trade %s: %w", t.ID, domain.ErrNotFound)
	}
	delete(m.open, t.ID)
	t.Status = domain.StatusClosed
	m.closed = append(m.closed, t)
	return nil
}

func (m *Memory) GetOpenTrades(context.Context) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.open))
	for _, p := range m.open {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketID != out[j].MarketID {
			return out[i].MarketID < out[j].MarketID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out, nil
}

func (m *Memory) GetClosedTrades(context.Context) ([]domain.ClosedTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ClosedTrade, len(m.closed))
	copy(out, m.closed)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExitTime.Before(out[j].ExitTime) })
	return out, nil
}

func (m *Memory) GetWallet(context.Context) (domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wallet == nil {
		return domain.Wallet{}, fmt.Errorf("storage.Memory.GetWallet: %w", domain.ErrNotFound)
	}
	return *m.wallet, nil
}

func (m *Memory) UpdateWallet(_ context.Context, w domain.Wallet, _ float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallet = &w
	return nil
}

// SaveCycle guarda el resumen en memoria.
func (m *Memory) SaveCycle(_ context.Context, c domain.CycleSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, c)
	return nil
}

// Cycles devuelve los resúmenes guardados.
func (m *Memory) Cycles() []domain.CycleSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CycleSummary, len(m.cycles))
	copy(out, m.cycles)
	return out
}
