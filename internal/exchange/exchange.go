// Package exchange provides connectivity to a spot exchange.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/quanvu/dipbot/internal/types"
)

// OrderType represents the type of order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// CreateOrderRequest holds the parameters for a new order.
type CreateOrderRequest struct {
	Symbol        string
	Side          types.Side
	Type          OrderType
	Amount        decimal.Decimal
	Price         decimal.Decimal
	ClientOrderID string
}

// Exchange defines the capability the order lifecycle core consumes. It is
// deliberately narrow: transport, signing and symbol mapping live behind it.
type Exchange interface {
	// CreateOrder places an order. Exchanges deduplicate on ClientOrderID,
	// so a resubmission with the same id must return the existing order
	// rather than create a second one.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*types.Order, error)

	// FetchOrder returns the current state of an order, or
	// types.ErrOrderNotFound if the exchange does not know it.
	FetchOrder(ctx context.Context, orderID, symbol string) (*types.Order, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, orderID, symbol string) error

	// MarketRules returns the trading rules for a symbol.
	MarketRules(ctx context.Context, symbol string) (types.MarketRules, error)
}

// ClientIDLookup is an optional capability: some exchanges can look an order
// up by its client order id. Callers must tolerate its absence.
type ClientIDLookup interface {
	FetchOrderByClientID(ctx context.Context, clientOrderID, symbol string) (*types.Order, error)
}

// LookupByClientID fetches an order by client order id if the exchange
// supports it, returning types.ErrLookupUnsupported otherwise.
func LookupByClientID(ctx context.Context, ex Exchange, clientOrderID, symbol string) (*types.Order, error) {
	lookup, ok := ex.(ClientIDLookup)
	if !ok {
		return nil, types.ErrLookupUnsupported
	}
	return lookup.FetchOrderByClientID(ctx, clientOrderID, symbol)
}
