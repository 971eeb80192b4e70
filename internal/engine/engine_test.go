package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quanvu/dipbot/internal/alerting"
	"github.com/quanvu/dipbot/internal/compliance"
	"github.com/quanvu/dipbot/internal/exchange"
	"github.com/quanvu/dipbot/internal/fillwait"
	"github.com/quanvu/dipbot/internal/ghost"
	"github.com/quanvu/dipbot/internal/reconcile"
	"github.com/quanvu/dipbot/internal/router"
	"github.com/quanvu/dipbot/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type harness struct {
	engine  *Engine
	paper   *exchange.Paper
	ghosts  *ghost.MemoryStore
	alerter *alerting.MockAlerter
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	paper := exchange.NewPaper(map[string]types.MarketRules{
		"BTC/USDT": {
			Symbol:      "BTC/USDT",
			PriceTick:   d("0.01"),
			AmountStep:  d("0.0001"),
			MinNotional: d("5"),
		},
	}, nil)

	routerCfg := router.DefaultConfig()
	routerCfg.RetryBackoff = time.Millisecond

	waitCfg := fillwait.Config{
		PollInterval:  5 * time.Millisecond,
		Timeout:       300 * time.Millisecond,
		PartialMaxAge: 50 * time.Millisecond,
	}

	ghosts := ghost.NewMemoryStore(time.Hour)
	mock := alerting.NewMockAlerter()

	eng := New(
		DefaultConfig(),
		paper,
		compliance.NewValidator(compliance.DefaultConfig(), nil),
		router.New(routerCfg, paper, nil),
		fillwait.New(waitCfg, paper, nil),
		reconcile.New(paper, nil),
		ghosts,
		mock,
		nil,
	)

	return &harness{engine: eng, paper: paper, ghosts: ghosts, alerter: mock}
}

func buyIntent(id string) types.TradeIntent {
	return types.TradeIntent{
		IntentID:    id,
		Symbol:      "BTC/USDT",
		Side:        types.SideBuy,
		RawPrice:    d("50000"),
		RawQuantity: d("0.001"),
		Reason:      "drop_trigger",
	}
}

// tickUntil keeps feeding a price to the paper exchange until stop closes.
func tickUntil(h *harness, price string, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-time.After(2 * time.Millisecond):
			h.paper.Tick("BTC/USDT", d(price))
		}
	}
}

func TestExecute_FilledEndToEnd(t *testing.T) {
	h := newHarness(t)

	stop := make(chan struct{})
	go tickUntil(h, "49990", stop)
	defer close(stop)

	outcome := h.engine.Execute(context.Background(), buyIntent("intent-e2e"))
	if outcome.Decision != DecisionFilled {
		t.Fatalf("Decision = %s, want filled (reason=%s, result=%+v)",
			outcome.Decision, outcome.AbortReason, outcome.Result)
	}
	if outcome.Order == nil || !outcome.Order.Filled.Equal(d("0.001")) {
		t.Fatalf("Order = %+v, want full fill of 0.001", outcome.Order)
	}

	pos := h.engine.Positions()["BTC/USDT"]
	if !pos.Quantity.Equal(d("0.001")) {
		t.Errorf("Quantity = %s, want 0.001", pos.Quantity)
	}
	if pos.HasPending() {
		t.Error("pending order should be cleared after fill")
	}
	if !h.alerter.HasAlertContaining("Order filled") {
		t.Error("expected order-filled alert")
	}
}

func TestExecute_ReplayedIntentDoesNotDoubleCount(t *testing.T) {
	h := newHarness(t)

	stop := make(chan struct{})
	go tickUntil(h, "49990", stop)
	defer close(stop)

	intent := buyIntent("intent-replay")
	first := h.engine.Execute(context.Background(), intent)
	second := h.engine.Execute(context.Background(), intent)

	if first.Decision != DecisionFilled || second.Decision != DecisionFilled {
		t.Fatalf("decisions = %s, %s, want filled, filled", first.Decision, second.Decision)
	}
	if first.Result.OrderID != second.Result.OrderID {
		t.Errorf("replay produced a different order: %s vs %s",
			first.Result.OrderID, second.Result.OrderID)
	}

	pos := h.engine.Positions()["BTC/USDT"]
	if !pos.Quantity.Equal(d("0.001")) {
		t.Errorf("Quantity = %s after replay, want 0.001 (no double count)", pos.Quantity)
	}
}

func TestExecute_ReplayOfOlderIntentDoesNotDoubleCount(t *testing.T) {
	h := newHarness(t)

	stop := make(chan struct{})
	go tickUntil(h, "49990", stop)
	defer close(stop)

	ctx := context.Background()
	intentA := buyIntent("intent-older-a")
	intentB := buyIntent("intent-newer-b")

	first := h.engine.Execute(ctx, intentA)
	second := h.engine.Execute(ctx, intentB)
	// Replay A after B has filled; its fill was already applied and must
	// stay applied exactly once.
	replay := h.engine.Execute(ctx, intentA)

	for i, out := range []Outcome{first, second, replay} {
		if out.Decision != DecisionFilled {
			t.Fatalf("execution %d: Decision = %s, want filled (reason=%s)",
				i, out.Decision, out.AbortReason)
		}
	}
	if replay.Result.OrderID != first.Result.OrderID {
		t.Errorf("replay produced a different order: %s vs %s",
			replay.Result.OrderID, first.Result.OrderID)
	}

	pos := h.engine.Positions()["BTC/USDT"]
	if !pos.Quantity.Equal(d("0.002")) {
		t.Errorf("Quantity = %s after replay, want 0.002 (no double count)", pos.Quantity)
	}
}

func TestExecute_NotFilledOnTimeout(t *testing.T) {
	h := newHarness(t)

	// No ticks: the order rests unfilled until the wait times out.
	outcome := h.engine.Execute(context.Background(), buyIntent("intent-timeout"))
	if outcome.Decision != DecisionNotFilled {
		t.Fatalf("Decision = %s, want not_filled", outcome.Decision)
	}

	pos := h.engine.Positions()["BTC/USDT"]
	if pos.HasPending() {
		t.Error("pending order should be cleared after cancel")
	}
	if !pos.Quantity.IsZero() {
		t.Errorf("Quantity = %s, want 0", pos.Quantity)
	}
	if len(h.paper.OpenOrders()) != 0 {
		t.Error("timed-out order should have been cancelled on the exchange")
	}
}

func TestExecute_AbortRecordsGhost(t *testing.T) {
	h := newHarness(t)

	intent := buyIntent("intent-dust")
	intent.RawQuantity = d("0.00005") // floors to zero

	outcome := h.engine.Execute(context.Background(), intent)
	if outcome.Decision != DecisionAborted {
		t.Fatalf("Decision = %s, want aborted", outcome.Decision)
	}
	if outcome.AbortReason == "" {
		t.Error("abort outcome must carry a reason")
	}

	entries, err := h.ghosts.List(context.Background(), "BTC/USDT", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ghost entries = %d, want 1", len(entries))
	}
	if entries[0].AffectsPnL || entries[0].AffectsBudget {
		t.Error("ghost entry must not affect money")
	}
	if len(h.paper.OpenOrders()) != 0 {
		t.Error("aborted intent must not reach the exchange")
	}
	if !h.alerter.HasAlertWithSeverity(alerting.SeverityWarning) {
		t.Error("expected intent-rejected alert")
	}
}

func TestExecute_UnknownSymbolAborts(t *testing.T) {
	h := newHarness(t)

	intent := buyIntent("intent-nosym")
	intent.Symbol = "DOGE/USDT"

	outcome := h.engine.Execute(context.Background(), intent)
	if outcome.Decision != DecisionAborted {
		t.Fatalf("Decision = %s, want aborted", outcome.Decision)
	}
}

func TestReconcileNow_AlertsOnDesync(t *testing.T) {
	h := newHarness(t)

	h.engine.SetPosition(types.PositionRecord{
		Symbol:         "BTC/USDT",
		PendingOrderID: "ord-vanished",
	})

	report := h.engine.ReconcileNow(context.Background())
	if report.OrphanedOrders != 1 {
		t.Errorf("OrphanedOrders = %d, want 1", report.OrphanedOrders)
	}
	if report.DesyncsFound != report.OrphanedOrders+report.MissingFills {
		t.Error("desync classification invariant violated")
	}
	if !h.alerter.HasAlertWithSeverity(alerting.SeverityCritical) {
		t.Error("expected critical desync alert")
	}
}

func TestEngine_StartStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.engine.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	done := make(chan struct{})
	go func() {
		h.engine.Stop(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not complete")
	}

	if !h.alerter.HasAlertContaining("Engine stopped") {
		t.Error("expected stop alert")
	}
}
