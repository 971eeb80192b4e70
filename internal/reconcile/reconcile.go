// Package reconcile compares local order and position bookkeeping against
// exchange truth and reports drift. It detects; it never corrects.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quanvu/dipbot/internal/exchange"
	"github.com/quanvu/dipbot/internal/metrics"
	"github.com/quanvu/dipbot/internal/types"
)

// Report is the structured output of one reconciliation pass.
// DesyncsFound always equals OrphanedOrders + MissingFills.
type Report struct {
	DesyncsFound    int
	CorrectionsMade int
	MissingFills    int
	OrphanedOrders  int
	Timestamp       time.Time
	Details         []string
}

// BalanceLookup is an optional capability for balance-level checks. The
// order-level reconciliation below is authoritative; balance findings are
// reported in Details only.
type BalanceLookup interface {
	FreeBalance(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Reconciler detects drift between local state and the exchange.
type Reconciler struct {
	ex       exchange.Exchange
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// New creates a reconciler over the given exchange capability.
func New(ex exchange.Exchange, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		ex:       ex,
		logger:   logger,
		recorder: metrics.NewRecorder(),
	}
}

// Sync walks every symbol with a nonzero local position or a tracked pending
// order and classifies discrepancies. The caller's map is read-only input; a
// per-symbol exchange error is recorded in Details and the pass continues.
func (r *Reconciler) Sync(ctx context.Context, coinStates map[string]types.PositionRecord) Report {
	report := Report{Timestamp: time.Now().UTC()}

	symbols := make([]string, 0, len(coinStates))
	for symbol := range coinStates {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		state := coinStates[symbol]
		if state.Quantity.IsZero() && !state.HasPending() {
			continue
		}
		r.syncSymbol(ctx, symbol, state, &report)
	}

	r.recorder.RecordReconcileRun()
	r.logger.Info("reconcile pass complete",
		"desyncs", report.DesyncsFound,
		"orphaned_orders", report.OrphanedOrders,
		"missing_fills", report.MissingFills,
		"details", len(report.Details),
	)
	return report
}

func (r *Reconciler) syncSymbol(ctx context.Context, symbol string, state types.PositionRecord, report *Report) {
	if !state.HasPending() {
		r.checkBalance(ctx, symbol, state, report)
		return
	}

	order, err := r.ex.FetchOrder(ctx, state.PendingOrderID, symbol)
	switch {
	case errors.Is(err, types.ErrOrderNotFound):
		// Local believes an order is live; the exchange has no record of it.
		report.OrphanedOrders++
		report.DesyncsFound++
		report.Details = append(report.Details, fmt.Sprintf(
			"%s: orphaned order %s tracked locally but absent on exchange",
			symbol, state.PendingOrderID,
		))
		r.recorder.RecordDesync("orphaned_order")
		r.logger.Warn("orphaned order detected",
			"symbol", symbol,
			"order_id", state.PendingOrderID,
		)

	case err != nil:
		// One symbol's exchange error must not block the rest of the pass.
		report.Details = append(report.Details, fmt.Sprintf(
			"%s: fetch order %s failed: %v", symbol, state.PendingOrderID, err,
		))
		r.recorder.RecordError("reconcile")
		r.logger.Warn("reconcile fetch failed",
			"symbol", symbol,
			"order_id", state.PendingOrderID,
			"err", err,
		)

	case order.Status == types.OrderStatusClosed && order.Filled.Sign() > 0 && state.Quantity.IsZero():
		// Exchange filled the order; local bookkeeping never saw it.
		report.MissingFills++
		report.DesyncsFound++
		report.Details = append(report.Details, fmt.Sprintf(
			"%s: order %s filled %s on exchange but local position is zero",
			symbol, order.ID, order.Filled,
		))
		r.recorder.RecordDesync("missing_fill")
		r.logger.Warn("missing fill detected",
			"symbol", symbol,
			"order_id", order.ID,
			"filled", order.Filled,
		)
	}
}

// checkBalance runs the advisory balance-level check when the exchange
// supports it. Findings go to Details and are not counted as desyncs.
func (r *Reconciler) checkBalance(ctx context.Context, symbol string, state types.PositionRecord, report *Report) {
	lookup, ok := r.ex.(BalanceLookup)
	if !ok {
		return
	}
	free, err := lookup.FreeBalance(ctx, symbol)
	if err != nil {
		report.Details = append(report.Details, fmt.Sprintf(
			"%s: balance lookup failed: %v", symbol, err,
		))
		return
	}
	if state.Quantity.Sign() > 0 && free.LessThan(state.Quantity) {
		report.Details = append(report.Details, fmt.Sprintf(
			"%s: local position %s exceeds exchange balance %s",
			symbol, state.Quantity, free,
		))
	}
}
