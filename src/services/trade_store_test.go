package services

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevisor/backend/src/models"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) (TradeStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	schema, err := os.ReadFile("../../db/migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return NewTradeStore(db), db
}

func sampleNormalizedTrade(hashID string) models.NormalizedTrade {
	return models.NormalizedTrade{
		Symbol:          "BTCUSDT",
		Side:            models.SideLong,
		EntryPrice:      42000,
		ExitPrice:       43000,
		PositionSize:    0.5,
		Leverage:        10,
		Margin:          2100,
		FundingFee:      -1.2,
		TradingFee:      3.4,
		ProfitLoss:      500,
		ROI:             23.81,
		OpenedAt:        time.Date(2026, 2, 27, 9, 30, 0, 0, time.UTC),
		ClosedAt:        time.Date(2026, 2, 27, 14, 15, 0, 0, time.UTC),
		DurationDays:    0,
		DurationHours:   4,
		DurationMinutes: 45,
		PeriodOfDay:     models.PeriodAfternoon,
		Broker:          "binance-futures",
		Setup:           "breakout",
		Notes:           "clean retest of the level",
		HashID:          hashID,
	}
}

func TestInsertTradesRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.InsertTrades(ctx, 1, []models.NormalizedTrade{sampleNormalizedTrade("hash-a")}, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	trades, err := store.ListTrades(ctx, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	got := trades[0]
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, models.SideLong, got.Side)
	assert.Equal(t, 42000.0, got.EntryPrice)
	assert.Equal(t, 0.5, got.PositionSize)
	assert.Equal(t, 2100.0, got.Margin)
	assert.Equal(t, 500.0, got.ProfitLoss)
	assert.Equal(t, 4*60+45, got.DurationMinutes)
	assert.Equal(t, models.PeriodAfternoon, got.PeriodOfDay)
	assert.Equal(t, "hash-a", got.HashID)
	assert.True(t, got.OpenedAt.Equal(time.Date(2026, 2, 27, 9, 30, 0, 0, time.UTC)))
	assert.Nil(t, got.DeletedAt)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestInsertTradesSkipsExactReupload(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	trade := sampleNormalizedTrade("hash-a")
	inserted, err := store.InsertTrades(ctx, 1, []models.NormalizedTrade{trade}, "batch-1")
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	// Same fingerprint again: skipped silently, nothing new inserted.
	inserted, err = store.InsertTrades(ctx, 1, []models.NormalizedTrade{trade}, "batch-2")
	require.NoError(t, err)
	assert.Zero(t, inserted)

	// A different user may hold the same fingerprint.
	inserted, err = store.InsertTrades(ctx, 2, []models.NormalizedTrade{trade}, "batch-3")
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	trades, err := store.ListTrades(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestFetchRecentTradesSinceFilterAndOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := sampleNormalizedTrade("hash-a")
	second := sampleNormalizedTrade("hash-b")
	second.Symbol = "ETHUSDT"
	_, err := store.InsertTrades(ctx, 1, []models.NormalizedTrade{first, second}, "batch-1")
	require.NoError(t, err)

	recent, err := store.FetchRecentTrades(ctx, 1, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Less(t, recent[0].ID, recent[1].ID)
	assert.Equal(t, "BTCUSDT", recent[0].Symbol)

	none, err := store.FetchRecentTrades(ctx, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)

	otherUser, err := store.FetchRecentTrades(ctx, 99, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, otherUser)
}

func TestSoftDeleteTrade(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertTrades(ctx, 1, []models.NormalizedTrade{sampleNormalizedTrade("hash-a")}, "batch-1")
	require.NoError(t, err)
	trades, err := store.ListTrades(ctx, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	tradeID := trades[0].ID

	// A different user cannot delete it.
	assert.ErrorIs(t, store.SoftDeleteTrade(ctx, 2, tradeID), ErrTradeNotFound)

	require.NoError(t, store.SoftDeleteTrade(ctx, 1, tradeID))

	trades, err = store.ListTrades(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, trades)

	// Deleting twice reports not found.
	assert.ErrorIs(t, store.SoftDeleteTrade(ctx, 1, tradeID), ErrTradeNotFound)
}

func TestRecordUpload(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordUpload(ctx, 1, "batch-1", "journal.csv", 2048, 17))

	var filename string
	var tradeCount int
	err := db.QueryRow(`SELECT filename, trade_count FROM uploads_history WHERE user_id = 1 AND batch_id = 'batch-1'`).
		Scan(&filename, &tradeCount)
	require.NoError(t, err)
	assert.Equal(t, "journal.csv", filename)
	assert.Equal(t, 17, tradeCount)
}

func TestListHoldings(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO portfolio_holdings (user_id, symbol, quantity, cost_basis, current_price)
		VALUES (1, 'ETH', 2, 4000, 2300), (1, 'BTC', 0.5, 20000, 44000), (2, 'SOL', 10, 1500, 160)`)
	require.NoError(t, err)

	holdings, err := store.ListHoldings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "BTC", holdings[0].Symbol)
	assert.Equal(t, "ETH", holdings[1].Symbol)
	assert.Equal(t, 44000.0, holdings[0].CurrentPrice)
}

func TestListTransactions(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO portfolio_transactions (user_id, date, type, symbol, quantity, price, value)
		VALUES (1, '2026-02-10 00:00:00', 'deposit', '', 0, 0, 1000),
		       (1, '2026-01-05 00:00:00', 'deposit', '', 0, 0, 500),
		       (2, '2026-03-01 00:00:00', 'withdrawal', '', 0, 0, 200)`)
	require.NoError(t, err)

	txs, err := store.ListTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Date.Before(txs[1].Date), "transactions come back in date order")
	assert.Equal(t, 500.0, txs[0].Value)
	assert.Equal(t, models.TxDeposit, txs[0].Type)
}
