// Package engine wires compliance, routing, fill waiting and reconciliation
// into the order lifecycle pipeline.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quanvu/dipbot/internal/alerting"
	"github.com/quanvu/dipbot/internal/compliance"
	"github.com/quanvu/dipbot/internal/exchange"
	"github.com/quanvu/dipbot/internal/fillwait"
	"github.com/quanvu/dipbot/internal/ghost"
	"github.com/quanvu/dipbot/internal/metrics"
	"github.com/quanvu/dipbot/internal/reconcile"
	"github.com/quanvu/dipbot/internal/router"
	"github.com/quanvu/dipbot/internal/types"
)

// Config holds engine configuration.
type Config struct {
	OrderType          exchange.OrderType
	ReconcileInterval  time.Duration
	GhostPruneInterval time.Duration
}

// appliedFillTTL bounds the applied-fill set. It must outlive the router's
// result cache: any replay the router can still serve from cache must find
// its order id here.
const appliedFillTTL = 4 * time.Hour

// DefaultConfig returns default engine config.
func DefaultConfig() Config {
	return Config{
		OrderType:          exchange.OrderTypeLimit,
		ReconcileInterval:  5 * time.Minute,
		GhostPruneInterval: time.Hour,
	}
}

// Decision classifies the outcome of one intent.
type Decision int

const (
	// DecisionFilled: the order was placed and filled completely.
	DecisionFilled Decision = iota
	// DecisionNotFilled: the order was placed but did not fill; it has
	// been cancelled and the caller holds nothing.
	DecisionNotFilled
	// DecisionAborted: compliance refused the intent before any network
	// call; a ghost entry records the refusal.
	DecisionAborted
	// DecisionFailed: submission failed after retries.
	DecisionFailed
)

func (d Decision) String() string {
	switch d {
	case DecisionFilled:
		return "filled"
	case DecisionNotFilled:
		return "not_filled"
	case DecisionAborted:
		return "aborted"
	case DecisionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of Execute. Every exit path of the pipeline
// is visible here rather than hidden in control flow.
type Outcome struct {
	Decision    Decision
	AbortReason string
	Result      types.OrderResult
	Order       *types.Order // non-nil only when Decision is DecisionFilled
}

// Engine runs the order lifecycle pipeline for trade intents.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	ex         exchange.Exchange
	validator  *compliance.Validator
	router     *router.Router
	waiter     *fillwait.Waiter
	reconciler *reconcile.Reconciler
	ghosts     ghost.Store
	alerter    alerting.Alerter
	recorder   *metrics.Recorder

	// Local bookkeeping: what this process believes it holds and tracks.
	mu        sync.RWMutex
	positions map[string]types.PositionRecord
	applied   map[string]time.Time // order id -> when its fill was applied
	running   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an engine. All collaborators are injected; the engine owns no
// hidden global state.
func New(
	cfg Config,
	ex exchange.Exchange,
	validator *compliance.Validator,
	rtr *router.Router,
	waiter *fillwait.Waiter,
	reconciler *reconcile.Reconciler,
	ghosts ghost.Store,
	alerter alerting.Alerter,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OrderType == "" {
		cfg.OrderType = exchange.OrderTypeLimit
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = DefaultConfig().ReconcileInterval
	}
	if cfg.GhostPruneInterval <= 0 {
		cfg.GhostPruneInterval = DefaultConfig().GhostPruneInterval
	}
	return &Engine{
		cfg:        cfg,
		logger:     logger,
		ex:         ex,
		validator:  validator,
		router:     rtr,
		waiter:     waiter,
		reconciler: reconciler,
		ghosts:     ghosts,
		alerter:    alerter,
		recorder:   metrics.NewRecorder(),
		positions:  make(map[string]types.PositionRecord),
		applied:    make(map[string]time.Time),
		done:       make(chan struct{}),
	}
}

// Execute runs one intent through the full pipeline:
// compliance -> idempotent submission -> fill wait -> bookkeeping.
func (e *Engine) Execute(ctx context.Context, intent types.TradeIntent) Outcome {
	rules, err := e.ex.MarketRules(ctx, intent.Symbol)
	if err != nil {
		e.recorder.RecordError("engine")
		return Outcome{
			Decision:    DecisionAborted,
			AbortReason: fmt.Sprintf("market rules unavailable: %v", err),
		}
	}

	res := e.validator.QuantizeAndValidate(intent.RawPrice, intent.RawQuantity, rules)
	for _, v := range res.Violations {
		e.recorder.RecordViolation(string(v))
	}
	if !res.Valid() {
		return e.abort(ctx, intent, res, "compliance rejected intent")
	}

	// Final strict gate immediately before the network call.
	if ok, reason, _ := e.validator.ValidateOrderParams(res.Price, res.Amount, rules); !ok {
		return e.abort(ctx, intent, res, reason)
	}

	result := e.router.Submit(ctx, intent, res.Price, res.Amount, e.cfg.OrderType)
	if !result.Success {
		e.logger.Error("submission failed",
			"intent_id", intent.IntentID,
			"symbol", intent.Symbol,
			"err", result.Error,
		)
		e.alert(ctx, alerting.EventOrderFailed, "Order submission failed",
			"symbol", intent.Symbol,
			"error", result.Error,
		)
		return Outcome{Decision: DecisionFailed, Result: result}
	}

	// An adopted order may already be terminal; the waiter resolves that on
	// its first poll either way.
	e.trackPending(intent, result.OrderID)
	order := e.waiter.WaitForFill(ctx, intent.Symbol, result.OrderID)
	if order == nil {
		e.clearPending(intent.Symbol)
		return Outcome{Decision: DecisionNotFilled, Result: result}
	}

	e.recordFill(intent.Symbol, order)
	e.alert(ctx, alerting.EventOrderFilled, "Order filled",
		"symbol", intent.Symbol,
		"order_id", order.ID,
		"filled", order.Filled.String(),
		"avg_price", order.Average.String(),
	)
	return Outcome{Decision: DecisionFilled, Result: result, Order: order}
}

// abort records a ghost entry and returns the tagged abort outcome.
func (e *Engine) abort(ctx context.Context, intent types.TradeIntent, res compliance.Result, reason string) Outcome {
	violations := make([]string, len(res.Violations))
	for i, v := range res.Violations {
		violations[i] = string(v)
	}

	entry := ghost.NewEntry(
		intent.IntentID, intent.Symbol, reason, violations,
		intent.RawPrice, intent.RawQuantity, res.Price, res.Amount,
	)
	if err := e.ghosts.Record(ctx, entry); err != nil {
		// The audit trail must never block trading decisions.
		e.logger.Warn("ghost entry not recorded", "err", err)
	}
	e.recorder.RecordGhostEntry()

	e.logger.Info("intent aborted",
		"intent_id", intent.IntentID,
		"symbol", intent.Symbol,
		"reason", reason,
		"violations", violations,
	)
	e.alert(ctx, alerting.EventIntentRejected, "Intent rejected by compliance",
		"symbol", intent.Symbol,
		"reason", reason,
	)
	return Outcome{Decision: DecisionAborted, AbortReason: reason}
}

// Start launches the background reconcile and ghost-prune loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.mu.Unlock()

	e.logger.Info("starting engine",
		"reconcile_interval", e.cfg.ReconcileInterval,
		"order_type", string(e.cfg.OrderType),
	)

	e.wg.Add(1)
	go e.reconcileLoop(ctx)
	e.wg.Add(1)
	go e.ghostPruneLoop(ctx)

	e.alert(ctx, alerting.EventBotStarted, "Engine started")
	return nil
}

// Stop shuts down the background loops.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	close(e.done)
	e.wg.Wait()
	e.alert(ctx, alerting.EventBotStopped, "Engine stopped")
	e.logger.Info("engine stopped")
}

func (e *Engine) reconcileLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.C:
			e.ReconcileNow(ctx)
		}
	}
}

// ReconcileNow runs one reconciliation pass against current bookkeeping.
func (e *Engine) ReconcileNow(ctx context.Context) reconcile.Report {
	report := e.reconciler.Sync(ctx, e.Positions())
	if report.DesyncsFound > 0 {
		e.alert(ctx, alerting.EventDesyncDetected, "State desync detected",
			"desyncs", report.DesyncsFound,
			"orphaned_orders", report.OrphanedOrders,
			"missing_fills", report.MissingFills,
		)
	}
	return report
}

func (e *Engine) ghostPruneLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.GhostPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.C:
			if n, err := e.ghosts.PruneExpired(ctx); err != nil {
				e.logger.Warn("ghost prune failed", "err", err)
			} else if n > 0 {
				e.logger.Debug("pruned ghost entries", "removed", n)
			}
			e.pruneAppliedFills()
		}
	}
}

func (e *Engine) pruneAppliedFills() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-appliedFillTTL)
	for id, at := range e.applied {
		if at.Before(cutoff) {
			delete(e.applied, id)
		}
	}
}

// Positions returns a copy of the local bookkeeping.
func (e *Engine) Positions() map[string]types.PositionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]types.PositionRecord, len(e.positions))
	for k, v := range e.positions {
		out[k] = v
	}
	return out
}

// SetPosition seeds or replaces the local record for a symbol.
func (e *Engine) SetPosition(record types.PositionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[record.Symbol] = record
}

func (e *Engine) trackPending(intent types.TradeIntent, orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	record := e.positions[intent.Symbol]
	record.Symbol = intent.Symbol
	record.PendingOrderID = orderID
	record.PendingSide = intent.Side
	e.positions[intent.Symbol] = record
}

func (e *Engine) clearPending(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	record := e.positions[symbol]
	record.PendingOrderID = ""
	e.positions[symbol] = record
}

func (e *Engine) recordFill(symbol string, order *types.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A replayed intent resolves to the same order; apply each fill once,
	// no matter how many other fills landed in between.
	if _, seen := e.applied[order.ID]; seen {
		return
	}
	e.applied[order.ID] = time.Now()

	record := e.positions[symbol]
	record.Symbol = symbol
	record.PendingOrderID = ""
	if order.Side == types.SideBuy {
		record.Quantity = record.Quantity.Add(order.Filled)
		record.EntryPrice = order.Average
	} else {
		record.Quantity = record.Quantity.Sub(order.Filled)
	}
	e.positions[symbol] = record
}

func (e *Engine) alert(ctx context.Context, event alerting.AlertEvent, message string, fields ...any) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Alert(ctx, alerting.EventSeverity(event), message, fields...); err != nil {
		e.logger.Warn("alert failed", "event", string(event), "err", err)
	}
}
