package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/username/tradevisor/backend/src/models"
)

func TestDetectBrokerFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		want    models.BrokerFormat
	}{
		{
			name:    "app export",
			headers: []string{"symbol", "side", "entry_price", "exit_price", "position_size", "profit_loss"},
			want:    models.FormatAppExport,
		},
		{
			name:    "binance futures by realized profit",
			headers: []string{"Symbol", "Qty", "Realized Profit"},
			want:    models.FormatBinanceFutures,
		},
		{
			name:    "binance futures by symbol and qty",
			headers: []string{"Symbol", "Qty", "Entry Price", "Exit Price"},
			want:    models.FormatBinanceFutures,
		},
		{
			name:    "bybit by closed pnl",
			headers: []string{"Contracts", "Closed P&L", "Avg Entry Price"},
			want:    models.FormatBybit,
		},
		{
			name:    "okx by instrument id",
			headers: []string{"Instrument ID", "Avg Open Px", "PnL"},
			want:    models.FormatOKX,
		},
		{
			name:    "app export wins over binance on shared symbol column",
			headers: []string{"symbol", "qty", "entry_price", "exit_price", "profit_loss"},
			want:    models.FormatAppExport,
		},
		{
			name:    "headers are case insensitive and trimmed",
			headers: []string{" SYMBOL ", " ENTRY_PRICE", "EXIT_PRICE ", "Profit_Loss"},
			want:    models.FormatAppExport,
		},
		{
			name:    "unknown layout falls back to generic",
			headers: []string{"foo", "bar", "baz"},
			want:    models.FormatGeneric,
		},
		{
			name:    "empty headers fall back to generic",
			headers: nil,
			want:    models.FormatGeneric,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBrokerFormat(tt.headers))
		})
	}
}
