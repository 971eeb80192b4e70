package types

import "errors"

// Sentinel errors for the trading system.
var (
	// Order errors
	ErrDuplicateOrder = errors.New("duplicate client order id")
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderTimeout   = errors.New("order timeout")
	ErrOrderRejected  = errors.New("order rejected by exchange")
	ErrEmptyOrderID   = errors.New("empty order id")
	ErrInvalidOrder   = errors.New("invalid order parameters")

	// Market data errors
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrNoMarketRules = errors.New("no market rules for symbol")
	ErrNoMarketData  = errors.New("no market data for symbol")

	// Connection errors
	ErrNotConnected      = errors.New("exchange not connected")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Capability errors
	ErrLookupUnsupported = errors.New("client order id lookup not supported")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
)
