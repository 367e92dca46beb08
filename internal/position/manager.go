// Package position gestiona el ciclo de vida de las posiciones de paper
// trading: admisión, fill de entrada, evaluación de salidas por tick y
// liquidación contra el wallet.
package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/ports"
)

// tradeNamespace es el namespace UUIDv5 de los IDs de trade: mismo mercado y
// misma hora de entrada producen el mismo ID en cada replay.
var tradeNamespace = uuid.MustParse("6f1c2d8e-3b4a-5c6d-9e7f-8a9b0c1d2e3f")

// Config agrupa los límites de riesgo y las reglas de salida.
type Config struct {
	FeePerSide             float64
	MaxPositionFraction    float64 // techo de size como fracción del balance
	MinPositionSize        float64 // USDC
	MaxConcurrentPositions int
	Cooldown               time.Duration // desde la última entrada en el mismo mercado
	MinTimeToExpiry        time.Duration
	TakeProfitBuffer       float64
	StopLossWidth          float64
	StopDecayStart         float64 // fracción de MaxHold a partir de la cual el stop se estrecha
	MaxHold                time.Duration
	ConvergenceTarget      float64
	InitialBalance         float64
}

// EvalResult resume una evaluación de salidas.
type EvalResult struct {
	Closed    []domain.ClosedTrade
	Ambiguous []string // mercados vencidos sin payoff claro; siguen abiertos
	Pending   int      // posiciones en closing esperando al store
}

// Manager mantiene el conjunto de posiciones abiertas (como mucho una por
// mercado) y el wallet. Es seguro para uso concurrente.
type Manager struct {
	cfg    Config
	fill   FillModel
	settle SettlementClassifier
	store  ports.TradeStore

	mu        sync.Mutex
	positions map[string]*domain.Position   // abiertas o en closing, por mercado
	pending   map[string]domain.ClosedTrade // closing: falta el ack del store
	lastView  map[string]MarketView         // última cotización válida
	lastEntry map[string]time.Time
	wallet    domain.Wallet
}

// NewManager crea un Manager con un wallet nuevo. Llamar a Restore para
// retomar el estado persistido.
func NewManager(cfg Config, fill FillModel, settle SettlementClassifier, store ports.TradeStore) *Manager {
	return &Manager{
		cfg:       cfg,
		fill:      fill,
		settle:    settle,
		store:     store,
		positions: make(map[string]*domain.Position),
		pending:   make(map[string]domain.ClosedTrade),
		lastView:  make(map[string]MarketView),
		lastEntry: make(map[string]time.Time),
		wallet:    domain.NewWallet(cfg.InitialBalance),
	}
}

// Restore carga el wallet y las posiciones abiertas desde el store.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := m.store.GetWallet(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		w = domain.NewWallet(m.cfg.InitialBalance)
	case err != nil:
		return fmt.Errorf("position.Restore: wallet: %w", err)
	}
	open, err := m.store.GetOpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("position.Restore: open trades: %w", err)
	}

	m.wallet = w
	for i := range open {
		p := open[i]
		if _, dup := m.positions[p.MarketID]; dup {
			slog.Warn("position: duplicate open trade in store, ignoring", "market", p.MarketID, "id", p.ID)
			continue
		}
		p.Status = domain.StatusOpen
		m.positions[p.MarketID] = &p
		if p.EntryTime.After(m.lastEntry[p.MarketID]) {
			m.lastEntry[p.MarketID] = p.EntryTime
		}
	}
	return nil
}

// Admit intenta abrir una posición a partir de una señal. El check-then-act
// sobre el conjunto de posiciones es atómico. Un rechazo es un DenyReason,
// no un error; los errores vienen del fill o del store.
func (m *Manager) Admit(ctx context.Context, sig domain.Signal, c domain.Contract, now time.Time) (domain.Position, domain.DenyReason, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !sig.Actionable || sig.Direction == domain.DirectionNone {
		return domain.Position{}, domain.DenyNotActionable, nil
	}
	if _, ok := m.positions[c.MarketID]; ok {
		return domain.Position{}, domain.DenyDuplicate, nil
	}
	if m.cfg.MaxConcurrentPositions > 0 && len(m.positions) >= m.cfg.MaxConcurrentPositions {
		return domain.Position{}, domain.DenyMaxPositions, nil
	}
	if last, ok := m.lastEntry[c.MarketID]; ok && now.Sub(last) < m.cfg.Cooldown {
		return domain.Position{}, domain.DenyCooldown, nil
	}
	if c.Expiry.Sub(now) <= m.cfg.MinTimeToExpiry {
		return domain.Position{}, domain.DenyExpiring, nil
	}
	size := m.positionSize(sig.KellyFraction)
	if size <= 0 || size < m.cfg.MinPositionSize {
		return domain.Position{}, domain.DenyTooSmall, nil
	}

	entry, err := m.fill.Fill(c, sig.Direction, size, true)
	if err != nil {
		return domain.Position{}, domain.DenyNone, fmt.Errorf("position.Admit: %s: %w", c.MarketID, err)
	}
	tp, sl := m.targets(sig.Direction, entry, sig.FairValue)

	p := domain.Position{
		ID:              tradeID(c.MarketID, now),
		MarketID:        c.MarketID,
		Asset:           c.Asset,
		Direction:       sig.Direction,
		EntryPrice:      entry,
		Size:            size,
		TakeProfitPrice: tp,
		StopLossPrice:   sl,
		EntryTime:       now,
		Expiry:          c.Expiry,
		MaxHold:         m.cfg.MaxHold,
		Status:          domain.StatusOpen,
		FairValue:       sig.FairValue,
		EntryDivergence: sig.Divergence,
		TracksDiverge:   sig.HasDivergence,
	}
	id, err := m.store.InsertTrade(ctx, p)
	if err != nil {
		return domain.Position{}, domain.DenyNone, fmt.Errorf("position.Admit: insert %s: %w", c.MarketID, err)
	}
	if id != "" {
		p.ID = id
	}

	m.positions[p.MarketID] = &p
	m.lastEntry[p.MarketID] = now
	m.lastView[p.MarketID] = MarketView{Contract: c}

	slog.Debug("position: opened",
		"market", p.MarketID,
		"dir", p.Direction,
		"entry", fmt.Sprintf("%.4f", p.EntryPrice),
		"size", fmt.Sprintf("$%.2f", p.Size),
		"tp", fmt.Sprintf("%.4f", tp),
		"sl", fmt.Sprintf("%.4f", sl),
	)
	return p, domain.DenyNone, nil
}

// Evaluate revisa todas las posiciones abiertas contra las cotizaciones del
// tick, también las de mercados que no vienen en views. Se debe llamar antes
// de buscar nuevas entradas en el mismo tick.
// Los cierres pendientes de ticks anteriores se reintentan primero.
func (m *Manager) Evaluate(ctx context.Context, views map[string]MarketView, now time.Time) (EvalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res EvalResult
	var errs []error
	m.retryPending(ctx, &res, &errs)

	for _, market := range m.sortedMarkets() {
		p := m.positions[market]
		if p.Status != domain.StatusOpen {
			continue
		}
		v, fresh := views[market]
		switch {
		case !fresh:
			// el mercado ya no está en el feed (vencido, cerrado o sin ticks):
			// se evalúa con la última cotización conocida
			v = m.staleView(p)
		case v.Contract.Validate() == nil:
			m.lastView[market] = v
		}

		dec, exit, err := m.decideExit(*p, v, fresh, now)
		if err != nil {
			if errors.Is(err, domain.ErrSettlementAmbiguous) {
				res.Ambiguous = append(res.Ambiguous, market)
				continue
			}
			errs = append(errs, err)
			continue
		}
		if !exit {
			continue
		}
		m.exit(ctx, p, dec, now, &res, &errs)
	}

	res.Pending = len(m.pending)
	return res, errors.Join(errs...)
}

// staleView es la vista de un mercado ausente del tick: la última cotización
// válida sin divergencia, o sólo la identidad del contrato.
func (m *Manager) staleView(p *domain.Position) MarketView {
	if v, ok := m.lastView[p.MarketID]; ok {
		return MarketView{Contract: v.Contract}
	}
	return MarketView{Contract: domain.Contract{
		MarketID: p.MarketID,
		Asset:    p.Asset,
		Expiry:   p.Expiry,
	}}
}

// ForceCloseAll cierra todas las posiciones abiertas con la última cotización
// conocida, p.ej. al final de un replay.
func (m *Manager) ForceCloseAll(ctx context.Context, now time.Time, reason domain.ExitReason) (EvalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res EvalResult
	var errs []error
	m.retryPending(ctx, &res, &errs)

	for _, market := range m.sortedMarkets() {
		p := m.positions[market]
		if p.Status != domain.StatusOpen {
			continue
		}
		m.exit(ctx, p, exitDecision{reason: reason}, now, &res, &errs)
	}

	res.Pending = len(m.pending)
	return res, errors.Join(errs...)
}

// exit calcula el precio de salida y el pnl, pasa la posición a closing e
// intenta persistir el cierre.
func (m *Manager) exit(ctx context.Context, p *domain.Position, dec exitDecision, now time.Time, res *EvalResult, errs *[]error) {
	exitPrice := p.EntryPrice
	switch {
	case dec.settled:
		exitPrice = dec.payoff
	default:
		if v, ok := m.lastView[p.MarketID]; ok {
			px, err := m.fill.Fill(v.Contract, p.Direction, p.Size, false)
			if err != nil {
				*errs = append(*errs, fmt.Errorf("position.exit: %s: %w", p.MarketID, err))
				return
			}
			exitPrice = px
		}
	}

	gross, fees, pnl := NetPnL(p.Direction, p.EntryPrice, exitPrice, p.Size, m.cfg.FeePerSide)
	p.Status = domain.StatusClosing
	t := domain.ClosedTrade{
		Position:   *p,
		ExitPrice:  exitPrice,
		ExitReason: dec.reason,
		ExitTime:   now,
		GrossPnL:   gross,
		Fees:       fees,
		PnL:        pnl,
		Hold:       p.Held(now),
	}
	t.Position.Status = domain.StatusClosed
	m.pending[p.MarketID] = t

	closed, err := m.finalize(ctx, t)
	if err != nil {
		*errs = append(*errs, err)
	}
	if closed {
		res.Closed = append(res.Closed, t)
	}
}

func (m *Manager) retryPending(ctx context.Context, res *EvalResult, errs *[]error) {
	if len(m.pending) == 0 {
		return
	}
	markets := make([]string, 0, len(m.pending))
	for market := range m.pending {
		markets = append(markets, market)
	}
	sort.Strings(markets)
	for _, market := range markets {
		t := m.pending[market]
		closed, err := m.finalize(ctx, t)
		if err != nil {
			*errs = append(*errs, err)
		}
		if closed {
			res.Closed = append(res.Closed, t)
		}
	}
}

// finalize persiste el cierre. Sólo con el ack del store la posición pasa a
// closed y el pnl llega al wallet; ErrPositionClosed cuenta como ack.
// closed=true aunque falle la persistencia del wallet: el siguiente
// UpdateWallet lleva el balance completo.
func (m *Manager) finalize(ctx context.Context, t domain.ClosedTrade) (closed bool, err error) {
	if err := m.store.CloseTrade(ctx, t); err != nil {
		if !errors.Is(err, domain.ErrPositionClosed) {
			return false, fmt.Errorf("position.finalize: close %s: %w", t.ID, err)
		}
		slog.Warn("position: trade already closed in store, treating as ack", "market", t.MarketID, "id", t.ID)
	}
	delete(m.pending, t.MarketID)
	delete(m.positions, t.MarketID)
	delete(m.lastView, t.MarketID)

	m.wallet.Apply(t.PnL)
	if err := m.store.UpdateWallet(ctx, m.wallet, t.PnL); err != nil {
		return true, fmt.Errorf("position.finalize: wallet after %s: %w", t.ID, err)
	}
	return true, nil
}

func (m *Manager) positionSize(kelly float64) float64 {
	frac := kelly
	if m.cfg.MaxPositionFraction > 0 {
		frac = math.Min(frac, m.cfg.MaxPositionFraction)
	}
	if !(frac > 0) || m.wallet.Balance <= 0 {
		return 0
	}
	return m.wallet.Balance * frac
}

func (m *Manager) sortedMarkets() []string {
	markets := make([]string, 0, len(m.positions))
	for market := range m.positions {
		markets = append(markets, market)
	}
	sort.Strings(markets)
	return markets
}

// Open devuelve una copia de las posiciones abiertas o en closing, por mercado.
func (m *Manager) Open() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, market := range m.sortedMarkets() {
		out = append(out, *m.positions[market])
	}
	return out
}

// Wallet devuelve una copia del wallet.
func (m *Manager) Wallet() domain.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallet
}

func tradeID(market string, entry time.Time) string {
	key := market + "@" + entry.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(tradeNamespace, []byte(key)).String()
}
