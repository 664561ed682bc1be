package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	t.Parallel()

	input := "symbol,entry_price,exit_price\nBTCUSDT,42000,43000\n\nETHUSDT,2200,2100\n"
	rows, headers, errs := ParseCSV(strings.NewReader(input))

	require.Empty(t, errs)
	assert.Equal(t, []string{"symbol", "entry_price", "exit_price"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, "BTCUSDT", rows[0]["symbol"])
	assert.Equal(t, "2100", rows[1]["exit_price"])
}

func TestParseCSVEmptyInput(t *testing.T) {
	t.Parallel()

	rows, headers, errs := ParseCSV(strings.NewReader(""))

	assert.Nil(t, rows)
	assert.Nil(t, headers)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "reading CSV header")
}

func TestParseCSVRaggedRows(t *testing.T) {
	t.Parallel()

	// Trailing columns missing on one row, extra on another. Both should
	// still be read.
	input := "symbol,entry_price,exit_price\nBTCUSDT,42000\nETHUSDT,2200,2100,extra\n"
	rows, headers, errs := ParseCSV(strings.NewReader(input))

	assert.Empty(t, errs)
	assert.Len(t, headers, 3)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0]["exit_price"])
	assert.Equal(t, "2100", rows[1]["exit_price"])
}

func TestParseCSVCollectsRowErrors(t *testing.T) {
	t.Parallel()

	// An unterminated quote breaks one row; the others still come through.
	input := "symbol,notes\nBTCUSDT,ok\nETHUSDT,\"broken\nSOLUSDT,fine\n"
	rows, headers, errs := ParseCSV(strings.NewReader(input))

	assert.Len(t, headers, 2)
	assert.NotEmpty(t, errs)
	assert.NotEmpty(t, rows)
	assert.Equal(t, "BTCUSDT", rows[0]["symbol"])
}
