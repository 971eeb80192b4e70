package exchange

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/quanvu/dipbot/internal/types"
)

// RateLimited wraps an Exchange with a token-bucket limiter so the bot stays
// inside the venue's request budget regardless of how many symbol workers
// share the connection.
type RateLimited struct {
	inner   Exchange
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited wrapper allowing requestsPerSecond
// sustained calls with an equal burst.
func NewRateLimited(inner Exchange, requestsPerSecond int) *RateLimited {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", types.ErrRateLimitExceeded, err)
	}
	return nil
}

// CreateOrder places an order after acquiring a rate token.
func (r *RateLimited) CreateOrder(ctx context.Context, req CreateOrderRequest) (*types.Order, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.CreateOrder(ctx, req)
}

// FetchOrder fetches an order after acquiring a rate token.
func (r *RateLimited) FetchOrder(ctx context.Context, orderID, symbol string) (*types.Order, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.FetchOrder(ctx, orderID, symbol)
}

// CancelOrder cancels an order after acquiring a rate token.
func (r *RateLimited) CancelOrder(ctx context.Context, orderID, symbol string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.inner.CancelOrder(ctx, orderID, symbol)
}

// MarketRules returns the symbol rules after acquiring a rate token.
func (r *RateLimited) MarketRules(ctx context.Context, symbol string) (types.MarketRules, error) {
	if err := r.wait(ctx); err != nil {
		return types.MarketRules{}, err
	}
	return r.inner.MarketRules(ctx, symbol)
}

// FetchOrderByClientID passes the optional lookup through when the wrapped
// exchange supports it.
func (r *RateLimited) FetchOrderByClientID(ctx context.Context, clientOrderID, symbol string) (*types.Order, error) {
	lookup, ok := r.inner.(ClientIDLookup)
	if !ok {
		return nil, types.ErrLookupUnsupported
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return lookup.FetchOrderByClientID(ctx, clientOrderID, symbol)
}
