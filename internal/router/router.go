// Package router submits orders idempotently: at most one live exchange
// order ever exists for a given trade intent, no matter how often or how
// concurrently the intent is submitted.
package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quanvu/dipbot/internal/exchange"
	"github.com/quanvu/dipbot/internal/metrics"
	"github.com/quanvu/dipbot/internal/types"
)

// Config holds router tuning knobs.
type Config struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		RetryBackoff:    400 * time.Millisecond,
		ResultTTL:       2 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// Router is the idempotent order router. All state is guarded by a single
// coarse lock: cache-check-then-submit is atomic with respect to every other
// caller, so two submissions for one intent can never race past each other.
type Router struct {
	cfg      Config
	ex       exchange.Exchange
	logger   *slog.Logger
	recorder *metrics.Recorder

	mu    sync.Mutex
	cache *resultCache
}

// New creates a router over the given exchange capability.
func New(cfg Config, ex exchange.Exchange, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultConfig().ResultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &Router{
		cfg:      cfg,
		ex:       ex,
		logger:   logger,
		recorder: metrics.NewRecorder(),
		cache:    newResultCache(cfg.ResultTTL, cfg.CleanupInterval),
	}
}

// Submit places an order for the intent, or returns the already-known
// outcome for it. Failures after retries exhaust are reported in the result,
// never retried again for the same intent; a fresh attempt requires a fresh
// intent.
func (r *Router) Submit(ctx context.Context, intent types.TradeIntent, price, amount decimal.Decimal, orderType exchange.OrderType) types.OrderResult {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.maybeCleanup()

	// Fast path: a result already exists for this intent.
	if result, ok := r.cache.get(intent.IntentID); ok {
		r.recorder.RecordCacheHit()
		r.logger.Debug("submit served from cache",
			"intent_id", intent.IntentID,
			"order_id", result.OrderID,
		)
		return result
	}

	coid := ClientOrderID(intent.IntentID)

	// Second idempotency layer: the exchange may already hold this order
	// from before a restart. Best effort only; a failed lookup must not
	// block placement.
	if order, err := exchange.LookupByClientID(ctx, r.ex, coid, intent.Symbol); err == nil && order != nil {
		r.recorder.RecordExchangeDiscovery()
		r.logger.Info("intent already on exchange, adopting order",
			"intent_id", intent.IntentID,
			"client_order_id", coid,
			"order_id", order.ID,
		)
		result := resultFromOrder(order)
		r.cache.put(intent.IntentID, result)
		r.recorder.RecordSubmission(intent.Symbol, intent.Side.String(), "discovered")
		return result
	}

	result := r.submitWithRetry(ctx, intent, coid, price, amount, orderType)
	r.cache.put(intent.IntentID, result)

	outcome := "failed"
	if result.Success {
		outcome = "placed"
	}
	r.recorder.RecordSubmission(intent.Symbol, intent.Side.String(), outcome)
	r.recorder.RecordSubmitLatency(time.Since(start))
	return result
}

// submitWithRetry attempts placement with exponential backoff. Every attempt
// carries the same client order id, so duplicate network-level submissions
// collapse to one exchange-side order.
func (r *Router) submitWithRetry(ctx context.Context, intent types.TradeIntent, coid string, price, amount decimal.Decimal, orderType exchange.OrderType) types.OrderResult {
	req := exchange.CreateOrderRequest{
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Type:          orderType,
		Amount:        amount,
		Price:         price,
		ClientOrderID: coid,
	}

	backoff := r.cfg.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			r.recorder.RecordRetry()
		}

		order, err := r.ex.CreateOrder(ctx, req)
		if err == nil && order != nil && order.ID != "" {
			r.logger.Info("order placed",
				"intent_id", intent.IntentID,
				"order_id", order.ID,
				"symbol", intent.Symbol,
				"side", intent.Side.String(),
				"price", price,
				"amount", amount,
				"attempt", attempt,
			)
			return resultFromOrder(order)
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = types.ErrOrderRejected
		}
		r.recorder.RecordError("router")
		r.logger.Warn("order placement attempt failed",
			"intent_id", intent.IntentID,
			"attempt", attempt,
			"max_retries", r.cfg.MaxRetries,
			"err", lastErr,
		)

		// No sleep after the final attempt.
		if attempt < r.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = r.cfg.MaxRetries
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return types.OrderResult{
		Success:   false,
		Status:    "failed",
		Error:     lastErr.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// CachedResult returns the cached outcome for an intent, if any.
func (r *Router) CachedResult(intentID string) (types.OrderResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.get(intentID)
}

// CacheSize returns the number of cached results, expired or not.
func (r *Router) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.size()
}

func resultFromOrder(order *types.Order) types.OrderResult {
	return types.OrderResult{
		Success:   true,
		OrderID:   order.ID,
		FilledQty: order.Filled,
		AvgPrice:  order.Average,
		Status:    order.Status.String(),
		Timestamp: time.Now().UTC(),
	}
}
