package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

const tradeColumns = `id, market_id, asset, direction, entry_price, size, take_profit, stop_loss,
	entry_ns, expiry_ns, max_hold_secs, fair_value, entry_divergence, tracks_divergence`

// InsertTrade registra una posición abierta.
func (s *SQLiteStorage) InsertTrade(ctx context.Context, p domain.Position) (string, error) {
	if p.ID == "" {
		return "", fmt.Errorf("storage.InsertTrade: %w: empty trade id", domain.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'open')`,
		p.ID, p.MarketID, p.Asset, string(p.Direction), p.EntryPrice, p.Size,
		p.TakeProfitPrice, p.StopLossPrice, p.EntryTime.UnixNano(), p.Expiry.UnixNano(),
		p.MaxHold.Seconds(), p.FairValue, p.EntryDivergence, boolToInt(p.TracksDiverge),
	)
	if err != nil {
		return "", fmt.Errorf("storage.InsertTrade: %w", err)
	}
	return p.ID, nil
}

// CloseTrade marca un trade abierto como cerrado.
func (s *SQLiteStorage) CloseTrade(ctx context.Context, t domain.ClosedTrade) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades
		SET status = 'closed', exit_price = ?, exit_reason = ?, exit_ns = ?,
		    gross_pnl = ?, fees = ?, pnl = ?, hold_seconds = ?
		WHERE id = ? AND status = 'open'`,
		t.ExitPrice, string(t.ExitReason), t.ExitTime.UnixNano(),
		t.GrossPnL, t.Fees, t.PnL, t.HoldSeconds(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.CloseTrade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.CloseTrade: rows affected: %w", err)
	}
	if n == 0 {
		return s.closeMiss(ctx, t.ID)
	}
	return nil
}

// closeMiss distingue un trade inexistente de uno ya cerrado.
func (s *SQLiteStorage) closeMiss(ctx context.Context, id string) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM trades WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("storage.CloseTrade: trade %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage.CloseTrade: %w", err)
	}
	return fmt.Errorf("storage.CloseTrade: trade %s: %w", id, domain.ErrPositionClosed)
}

// GetOpenTrades devuelve las posiciones abiertas por mercado.
func (s *SQLiteStorage) GetOpenTrades(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'open' ORDER BY market_id, entry_ns`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetOpenTrades: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetClosedTrades devuelve el histórico de trades cerrados por fecha de salida.
func (s *SQLiteStorage) GetClosedTrades(ctx context.Context) ([]domain.ClosedTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tradeColumns+`, exit_price, exit_reason, exit_ns, gross_pnl, fees, pnl, hold_seconds
		FROM trades WHERE status = 'closed' ORDER BY exit_ns, id`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetClosedTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.ClosedTrade
	for rows.Next() {
		var t domain.ClosedTrade
		var dir, reason string
		var entryNs, expiryNs, exitNs int64
		var maxHold, hold float64
		var tracks int
		if err := rows.Scan(
			&t.ID, &t.MarketID, &t.Asset, &dir, &t.EntryPrice, &t.Size, &t.TakeProfitPrice,
			&t.StopLossPrice, &entryNs, &expiryNs, &maxHold, &t.FairValue, &t.EntryDivergence, &tracks,
			&t.ExitPrice, &reason, &exitNs, &t.GrossPnL, &t.Fees, &t.PnL, &hold,
		); err != nil {
			return nil, fmt.Errorf("storage.GetClosedTrades: scan: %w", err)
		}
		t.Direction = domain.Direction(dir)
		t.EntryTime = time.Unix(0, entryNs).UTC()
		t.Expiry = time.Unix(0, expiryNs).UTC()
		t.MaxHold = secondsToDuration(maxHold)
		t.TracksDiverge = tracks == 1
		t.Status = domain.StatusClosed
		t.ExitReason = domain.ExitReason(reason)
		t.ExitTime = time.Unix(0, exitNs).UTC()
		t.Hold = secondsToDuration(hold)
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetWallet devuelve el wallet persistido, o domain.ErrNotFound si nunca se guardó.
func (s *SQLiteStorage) GetWallet(ctx context.Context) (domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, initial_balance, total_trades, wins, losses, peak, max_drawdown
		FROM wallet WHERE id = 1`,
	).Scan(&w.Balance, &w.InitialBalance, &w.TotalTrades, &w.Wins, &w.Losses, &w.Peak, &w.MaxDrawdown)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wallet{}, fmt.Errorf("storage.GetWallet: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("storage.GetWallet: %w", err)
	}
	return w, nil
}

// UpdateWallet hace upsert de la única fila del wallet.
func (s *SQLiteStorage) UpdateWallet(ctx context.Context, w domain.Wallet, pnlDelta float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet (id, balance, initial_balance, total_trades, wins, losses, peak, max_drawdown, last_pnl, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    balance = excluded.balance,
		    initial_balance = excluded.initial_balance,
		    total_trades = excluded.total_trades,
		    wins = excluded.wins,
		    losses = excluded.losses,
		    peak = excluded.peak,
		    max_drawdown = excluded.max_drawdown,
		    last_pnl = excluded.last_pnl,
		    updated_at = excluded.updated_at`,
		w.Balance, w.InitialBalance, w.TotalTrades, w.Wins, w.Losses, w.Peak, w.MaxDrawdown,
		pnlDelta, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateWallet: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (domain.Position, error) {
	var p domain.Position
	var dir string
	var entryNs, expiryNs int64
	var maxHold float64
	var tracks int
	if err := row.Scan(
		&p.ID, &p.MarketID, &p.Asset, &dir, &p.EntryPrice, &p.Size, &p.TakeProfitPrice,
		&p.StopLossPrice, &entryNs, &expiryNs, &maxHold, &p.FairValue, &p.EntryDivergence, &tracks,
	); err != nil {
		return domain.Position{}, err
	}
	p.Direction = domain.Direction(dir)
	p.EntryTime = time.Unix(0, entryNs).UTC()
	p.Expiry = time.Unix(0, expiryNs).UTC()
	p.MaxHold = secondsToDuration(maxHold)
	p.TracksDiverge = tracks == 1
	p.Status = domain.StatusOpen
	return p, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
