package storage

// sqlite.go: trades de paper trading, wallet y resumen por ciclo.
//
// Estrategia:
//   - `trades`: una fila por posición; se inserta al abrir y se actualiza al cerrar.
//   - `wallet`: siempre una fila (id = 1).
//   - `cycles`: resumen ligero por batch de ticks. Prune automático al arrancar (> 30d).
//   - Los timestamps se guardan como unix nanos para que un replay reabra
//     exactamente las mismas posiciones.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id                TEXT PRIMARY KEY,
    market_id         TEXT    NOT NULL,
    asset             TEXT,
    direction         TEXT    NOT NULL,
    entry_price       REAL    NOT NULL,
    size              REAL    NOT NULL,
    take_profit       REAL    NOT NULL DEFAULT 0,
    stop_loss         REAL    NOT NULL DEFAULT 0,
    entry_ns          INTEGER NOT NULL,
    expiry_ns         INTEGER NOT NULL,
    max_hold_secs     REAL    NOT NULL DEFAULT 0,
    fair_value        REAL    NOT NULL DEFAULT 0,
    entry_divergence  REAL    NOT NULL DEFAULT 0,
    tracks_divergence INTEGER NOT NULL DEFAULT 0,
    status            TEXT    NOT NULL DEFAULT 'open',
    exit_price        REAL,
    exit_reason       TEXT,
    exit_ns           INTEGER,
    gross_pnl         REAL,
    fees              REAL,
    pnl               REAL,
    hold_seconds      REAL
);

CREATE TABLE IF NOT EXISTS wallet (
    id              INTEGER PRIMARY KEY CHECK (id = 1),
    balance         REAL    NOT NULL,
    initial_balance REAL    NOT NULL,
    total_trades    INTEGER NOT NULL DEFAULT 0,
    wins            INTEGER NOT NULL DEFAULT 0,
    losses          INTEGER NOT NULL DEFAULT 0,
    peak            REAL    NOT NULL DEFAULT 0,
    max_drawdown    REAL    NOT NULL DEFAULT 0,
    last_pnl        REAL    NOT NULL DEFAULT 0,
    updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_ns   INTEGER NOT NULL,
    ticks      INTEGER NOT NULL DEFAULT 0,
    signals    INTEGER NOT NULL DEFAULT 0,
    actionable INTEGER NOT NULL DEFAULT 0,
    opened     INTEGER NOT NULL DEFAULT 0,
    closed     INTEGER NOT NULL DEFAULT 0,
    ambiguous  INTEGER NOT NULL DEFAULT 0,
    denied     INTEGER NOT NULL DEFAULT 0,
    balance    REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
CREATE INDEX IF NOT EXISTS idx_trades_exit   ON trades(exit_ns);
CREATE INDEX IF NOT EXISTS idx_cycles_at     ON cycles(cycle_ns DESC);
`

const retentionCycles = 30 * 24 * time.Hour // ciclos: 30 días

// SQLiteStorage implementa ports.TradeStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia ciclos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}
	if err := s.ApplySchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	s.pruneOld(context.Background())
	return s, nil
}

// ApplySchema crea las tablas si no existen.
func (s *SQLiteStorage) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage.ApplySchema: %w", err)
	}
	return nil
}

// SaveCycle guarda el resumen de un batch de ticks.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, c domain.CycleSummary) error {
	denied := 0
	for _, n := range c.Denied {
		denied += n
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (cycle_ns, ticks, signals, actionable, opened, closed, ambiguous, denied, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.At.UnixNano(), c.Ticks, c.Signals, c.Actionable, c.Opened, c.Closed, c.Ambiguous, denied, c.Balance,
	); err != nil {
		return fmt.Errorf("storage.SaveCycle: %w", err)
	}
	return nil
}

// CountCycles devuelve cuántos ciclos hay registrados desde from.
func (s *SQLiteStorage) CountCycles(ctx context.Context, from time.Time) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cycles WHERE cycle_ns >= ?`, from.UnixNano(),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CountCycles: %w", err)
	}
	return n, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld elimina ciclos antiguos para mantener la DB ligera.
// Los trades nunca se borran: son el histórico del informe de rendimiento.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionCycles)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE cycle_ns < ?`, cutoff.UnixNano())
}
