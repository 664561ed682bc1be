// backend/src/processors/trade_processor.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/username/tradevisor/backend/src/models"
	"github.com/username/tradevisor/backend/src/security/validation"
)

// TradeProcessor enriches normalized trades with data that is not
// broker-specific before they are scored and persisted.
type TradeProcessor struct{}

func NewTradeProcessor() *TradeProcessor { return &TradeProcessor{} }

// Process sanitizes the free-text fields, recomputes the derived fields and
// stamps each trade with its hash ID.
func (p *TradeProcessor) Process(trades []models.NormalizedTrade) []models.NormalizedTrade {
	out := make([]models.NormalizedTrade, len(trades))
	for i, t := range trades {
		t.Symbol = validation.StripUnprintable(t.Symbol)
		t.Broker = validation.SanitizeText(t.Broker)
		t.Setup = validation.SanitizeText(t.Setup)
		t.Notes = validation.SanitizeText(t.Notes)
		t.RecalculateDerived()
		t.HashID = tradeHash(t)
		out[i] = t
	}
	return out
}

// tradeHash fingerprints the identifying fields of a trade. The store's
// uniqueness constraint on (user_id, hash_id) catches exact re-uploads that
// never reach the fuzzy duplicate scorer.
func tradeHash(t models.NormalizedTrade) string {
	input := fmt.Sprintf("%s|%s|%.8f|%.8f|%.8f|%d|%d|%.8f",
		t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.PositionSize,
		t.OpenedAt.Unix(), t.ClosedAt.Unix(), t.ProfitLoss,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
