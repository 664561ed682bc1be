// backend/src/services/trade_store.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/username/tradevisor/backend/src/logger"
	"github.com/username/tradevisor/backend/src/models"
)

// sqlTradeStore is the sqlite-backed TradeStore. All money math stays in the
// processors; this layer only moves rows.
type sqlTradeStore struct {
	db *sql.DB
}

// NewTradeStore wraps an opened database handle.
func NewTradeStore(db *sql.DB) TradeStore {
	return &sqlTradeStore{db: db}
}

const tradeColumns = `id, user_id, symbol, side, entry_price, exit_price, position_size,
	leverage, margin, funding_fee, trading_fee, profit_loss, roi, opened_at, closed_at,
	duration_minutes, period_of_day, broker, setup, notes, hash_id, created_at, deleted_at`

// FetchRecentTrades returns non-deleted trades created since the given
// instant, ordered by id ascending. The duplicate detector's first-match-wins
// pass depends on this order staying stable.
func (s *sqlTradeStore) FetchRecentTrades(ctx context.Context, userID int64, since time.Time) ([]models.PersistedTrade, error) {
	query := fmt.Sprintf(`SELECT %s FROM trades
		WHERE user_id = ? AND deleted_at IS NULL AND created_at >= ?
		ORDER BY id ASC`, tradeColumns)
	rows, err := s.db.QueryContext(ctx, query, userID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("error querying recent trades for userID %d: %w", userID, err)
	}
	defer rows.Close()
	return scanTrades(rows, userID)
}

func (s *sqlTradeStore) ListTrades(ctx context.Context, userID int64) ([]models.PersistedTrade, error) {
	query := fmt.Sprintf(`SELECT %s FROM trades
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY closed_at ASC, id ASC`, tradeColumns)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying trades for userID %d: %w", userID, err)
	}
	defer rows.Close()
	return scanTrades(rows, userID)
}

func scanTrades(rows *sql.Rows, userID int64) ([]models.PersistedTrade, error) {
	var trades []models.PersistedTrade
	for rows.Next() {
		var t models.PersistedTrade
		var deletedAt sql.NullTime
		err := rows.Scan(
			&t.ID, &t.UserID, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice, &t.PositionSize,
			&t.Leverage, &t.Margin, &t.FundingFee, &t.TradingFee, &t.ProfitLoss, &t.ROI,
			&t.OpenedAt, &t.ClosedAt, &t.DurationMinutes, &t.PeriodOfDay, &t.Broker,
			&t.Setup, &t.Notes, &t.HashID, &t.CreatedAt, &deletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning trade row for userID %d: %w", userID, err)
		}
		if deletedAt.Valid {
			t.DeletedAt = &deletedAt.Time
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over trade rows for userID %d: %w", userID, err)
	}
	return trades, nil
}

// InsertTrades writes accepted trades inside one transaction. Rows colliding
// with the (user_id, hash_id) uniqueness constraint are skipped, not errors:
// an exact re-upload simply inserts nothing.
func (s *sqlTradeStore) InsertTrades(ctx context.Context, userID int64, trades []models.NormalizedTrade, batchID string) (int, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `INSERT INTO trades
		(user_id, batch_id, symbol, side, entry_price, exit_price, position_size,
		leverage, margin, funding_fee, trading_fee, opened_at, closed_at,
		profit_loss, roi, duration_minutes, period_of_day, broker, setup, notes, hash_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range trades {
		durationMinutes := t.DurationDays*24*60 + t.DurationHours*60 + t.DurationMinutes
		_, err := stmt.ExecContext(ctx,
			userID, batchID, t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.PositionSize,
			t.Leverage, t.Margin, t.FundingFee, t.TradingFee, t.OpenedAt.UTC(), t.ClosedAt.UTC(),
			t.ProfitLoss, t.ROI, durationMinutes, t.PeriodOfDay, t.Broker, t.Setup, t.Notes, t.HashID,
		)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping exact duplicate trade on insert", "userID", userID, "hashID", t.HashID)
				continue
			}
			return 0, fmt.Errorf("error inserting trade (symbol %s): %w", t.Symbol, err)
		}
		inserted++
	}
	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing trades: %w", err)
	}
	return inserted, nil
}

func (s *sqlTradeStore) SoftDeleteTrade(ctx context.Context, userID, tradeID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trades SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		tradeID, userID,
	)
	if err != nil {
		return fmt.Errorf("error soft-deleting trade %d: %w", tradeID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking soft-delete result for trade %d: %w", tradeID, err)
	}
	if affected == 0 {
		return ErrTradeNotFound
	}
	return nil
}

func (s *sqlTradeStore) RecordUpload(ctx context.Context, userID int64, batchID, filename string, filesize int64, tradeCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads_history (user_id, batch_id, filename, file_size, trade_count)
		VALUES (?, ?, ?, ?, ?)`,
		userID, batchID, filename, filesize, tradeCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record upload in history: %w", err)
	}
	return nil
}

func (s *sqlTradeStore) ListHoldings(ctx context.Context, userID int64) ([]models.PortfolioHolding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, quantity, cost_basis, current_price
		FROM portfolio_holdings
		WHERE user_id = ?
		ORDER BY symbol ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying holdings for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var holdings []models.PortfolioHolding
	for rows.Next() {
		var h models.PortfolioHolding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.CostBasis, &h.CurrentPrice); err != nil {
			return nil, fmt.Errorf("error scanning holding row for userID %d: %w", userID, err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *sqlTradeStore) ListTransactions(ctx context.Context, userID int64) ([]models.PortfolioTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, type, symbol, quantity, price, value
		FROM portfolio_transactions
		WHERE user_id = ?
		ORDER BY date ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var txs []models.PortfolioTransaction
	for rows.Next() {
		var tx models.PortfolioTransaction
		if err := rows.Scan(&tx.Date, &tx.Type, &tx.Symbol, &tx.Quantity, &tx.Price, &tx.Value); err != nil {
			return nil, fmt.Errorf("error scanning transaction row for userID %d: %w", userID, err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
