// Package types defines shared types used across the trading system.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideSell:
		return "sell"
	default:
		return "buy"
	}
}

// OrderStatus represents the state of an exchange order.
type OrderStatus int

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusOpen
	OrderStatusPartialFill
	OrderStatusClosed
	OrderStatusCanceled
	OrderStatusRejected
	OrderStatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "new"
	case OrderStatusOpen:
		return "open"
	case OrderStatusPartialFill:
		return "partially_filled"
	case OrderStatusClosed:
		return "closed"
	case OrderStatusCanceled:
		return "canceled"
	case OrderStatusRejected:
		return "rejected"
	case OrderStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// IsFinal returns true if the order is in a terminal state.
func (s OrderStatus) IsFinal() bool {
	switch s {
	case OrderStatusClosed, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// TradeIntent is an immutable request to trade, produced by the decision
// layer. IntentID is the idempotency key for the whole order lifecycle:
// identical decision inputs within one decision cycle collapse to one id.
type TradeIntent struct {
	IntentID    string
	Symbol      string
	Side        Side
	RawPrice    decimal.Decimal
	RawQuantity decimal.Decimal
	Reason      string
	CreatedAt   time.Time
}

// NewTradeIntent builds an intent whose id is a content hash of the decision
// inputs plus the decision-cycle timestamp, so identical inputs within the
// same cycle collapse to the same id.
func NewTradeIntent(symbol string, side Side, price, qty decimal.Decimal, reason string, cycle time.Time) TradeIntent {
	seed := fmt.Sprintf("%s|%s|%s|%s|%d", symbol, side, price.String(), qty.String(), cycle.Unix())
	sum := sha256.Sum256([]byte(seed))
	return TradeIntent{
		IntentID:    hex.EncodeToString(sum[:16]),
		Symbol:      symbol,
		Side:        side,
		RawPrice:    price,
		RawQuantity: qty,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
}

// MarketRules is the per-symbol exchange rule set. Owned by the exchange
// capability and read-only to the core.
type MarketRules struct {
	Symbol      string
	PriceTick   decimal.Decimal
	AmountStep  decimal.Decimal
	MinNotional decimal.Decimal
}

// Order is an exchange order record as reported by the exchange capability.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          Side
	Price         decimal.Decimal
	Amount        decimal.Decimal
	Filled        decimal.Decimal
	Average       decimal.Decimal
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderResult is the outcome of a submission attempt for one intent.
// Once cached by the router it is never mutated.
type OrderResult struct {
	Success   bool
	OrderID   string
	FilledQty decimal.Decimal
	AvgPrice  decimal.Decimal
	Status    string
	Error     string
	Timestamp time.Time
}

// PositionRecord is the caller's local view of a symbol: how much it believes
// it holds plus any order it is tracking as pending. A zero Quantity means
// flat; an empty PendingOrderID means no order is tracked.
type PositionRecord struct {
	Symbol         string
	Quantity       decimal.Decimal
	EntryPrice     decimal.Decimal
	PendingOrderID string
	PendingSide    Side
}

// HasPending reports whether a pending order is tracked for this symbol.
func (p PositionRecord) HasPending() bool {
	return p.PendingOrderID != ""
}
