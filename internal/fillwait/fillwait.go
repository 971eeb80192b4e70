// Package fillwait blocks on a freshly placed order until it reaches a
// terminal state, with a hard timeout and a stuck-partial-fill policy so the
// trading loop never hangs on a single order.
package fillwait

import (
	"context"
	"log/slog"
	"time"

	"github.com/quanvu/dipbot/internal/exchange"
	"github.com/quanvu/dipbot/internal/metrics"
	"github.com/quanvu/dipbot/internal/types"
)

// Config holds fill wait tuning knobs.
type Config struct {
	PollInterval  time.Duration
	Timeout       time.Duration
	PartialMaxAge time.Duration
}

// DefaultConfig returns the default fill wait configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:  500 * time.Millisecond,
		Timeout:       30 * time.Second,
		PartialMaxAge: 10 * time.Second,
	}
}

// Waiter polls order state until a terminal answer exists.
type Waiter struct {
	cfg      Config
	ex       exchange.Exchange
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// New creates a waiter over the given exchange capability.
func New(cfg Config, ex exchange.Exchange, logger *slog.Logger) *Waiter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.PartialMaxAge <= 0 {
		cfg.PartialMaxAge = DefaultConfig().PartialMaxAge
	}
	return &Waiter{
		cfg:      cfg,
		ex:       ex,
		logger:   logger,
		recorder: metrics.NewRecorder(),
	}
}

// WaitForFill blocks until the order fills, fails, or times out. A non-nil
// return is a fully filled order; nil means the caller must not assume a
// fill. The wait always resolves within Timeout plus one poll interval.
func (w *Waiter) WaitForFill(ctx context.Context, symbol, orderID string) *types.Order {
	start := time.Now()

	// A missing id is a placement bug upstream, not a normal failure path.
	if orderID == "" {
		w.logger.Error("wait_for_fill called with empty order id", "symbol", symbol)
		w.recorder.RecordFillWait("aborted", 0)
		return nil
	}

	deadline := start.Add(w.cfg.Timeout)
	var partialSince time.Time

	for {
		order, err := w.ex.FetchOrder(ctx, orderID, symbol)
		if err != nil {
			// Transient fetch errors are retried on the next tick.
			w.logger.Debug("order fetch failed, will retry",
				"order_id", orderID,
				"err", err,
			)
		} else {
			switch {
			case order.Status == types.OrderStatusClosed:
				w.logger.Info("order filled",
					"order_id", orderID,
					"symbol", symbol,
					"filled", order.Filled,
					"avg_price", order.Average,
				)
				w.recorder.RecordFillWait("filled", time.Since(start))
				return order

			case order.Status.IsFinal():
				w.logger.Warn("order reached terminal state without fill",
					"order_id", orderID,
					"status", order.Status.String(),
				)
				w.recorder.RecordFillWait("terminal_unfilled", time.Since(start))
				return nil

			case order.Filled.Sign() > 0 && order.Filled.LessThan(order.Amount):
				if partialSince.IsZero() {
					partialSince = time.Now()
					w.logger.Info("partial fill observed",
						"order_id", orderID,
						"filled", order.Filled,
						"amount", order.Amount,
					)
				} else if time.Since(partialSince) > w.cfg.PartialMaxAge {
					w.logger.Warn("partial fill stuck, cancelling order",
						"order_id", orderID,
						"filled", order.Filled,
						"age", time.Since(partialSince),
					)
					w.cancel(ctx, symbol, orderID)
					w.recorder.RecordFillWait("stuck_partial", time.Since(start))
					return nil
				}
			}
		}

		if time.Now().After(deadline) {
			w.logger.Warn("fill wait timed out, cancelling order",
				"order_id", orderID,
				"timeout", w.cfg.Timeout,
			)
			w.cancel(ctx, symbol, orderID)
			w.recorder.RecordFillWait("timeout", time.Since(start))
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Warn("fill wait cancelled by caller, cancelling order",
				"order_id", orderID,
			)
			w.cancel(context.WithoutCancel(ctx), symbol, orderID)
			w.recorder.RecordFillWait("aborted", time.Since(start))
			return nil
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// cancel issues an exchange cancel. Failures are logged and swallowed: the
// wait still reports "not filled", which is the invariant that matters.
func (w *Waiter) cancel(ctx context.Context, symbol, orderID string) {
	if err := w.ex.CancelOrder(ctx, orderID, symbol); err != nil {
		w.recorder.RecordError("fillwait")
		w.logger.Warn("order cancel failed",
			"order_id", orderID,
			"err", err,
		)
	}
}
