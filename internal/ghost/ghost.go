// Package ghost records buy intents that were validated and then aborted.
// Entries are pure audit trail: they never affect PnL, budget, or any
// money-moving decision.
package ghost

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTTL is how long an entry is retained before pruning.
const DefaultTTL = 24 * time.Hour

// Entry is one aborted intent.
type Entry struct {
	ID              string
	IntentID        string
	Symbol          string
	CreatedAt       time.Time
	Violations      []string
	AbortReason     string
	QuantizedPrice  decimal.Decimal
	QuantizedAmount decimal.Decimal
	RawPrice        decimal.Decimal
	RawAmount       decimal.Decimal
	AffectsPnL      bool
	AffectsBudget   bool
}

// NewEntry builds an entry for an aborted intent. AffectsPnL and
// AffectsBudget are always false; the fields exist so readers of the audit
// trail see the guarantee spelled out.
func NewEntry(intentID, symbol, abortReason string, violations []string, rawPrice, rawAmount, qPrice, qAmount decimal.Decimal) Entry {
	return Entry{
		ID:              uuid.New().String(),
		IntentID:        intentID,
		Symbol:          symbol,
		CreatedAt:       time.Now().UTC(),
		Violations:      violations,
		AbortReason:     abortReason,
		QuantizedPrice:  qPrice,
		QuantizedAmount: qAmount,
		RawPrice:        rawPrice,
		RawAmount:       rawAmount,
		AffectsPnL:      false,
		AffectsBudget:   false,
	}
}

// Store persists ghost entries.
type Store interface {
	// Record stores an entry.
	Record(ctx context.Context, e Entry) error
	// List returns entries for a symbol, newest first, up to limit.
	// An empty symbol returns entries across all symbols.
	List(ctx context.Context, symbol string, limit int) ([]Entry, error)
	// PruneExpired removes entries older than the store's TTL and returns
	// how many were removed.
	PruneExpired(ctx context.Context) (int, error)
	// Close releases store resources.
	Close() error
}
