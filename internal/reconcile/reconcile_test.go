package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quanvu/dipbot/internal/exchange"
	"github.com/quanvu/dipbot/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// mapExchange serves orders from a map; unknown symbols can be scripted to
// error.
type mapExchange struct {
	orders    map[string]*types.Order
	fetchErrs map[string]error // symbol -> error
	balances  map[string]decimal.Decimal
}

func (m *mapExchange) FetchOrder(ctx context.Context, orderID, symbol string) (*types.Order, error) {
	if err, ok := m.fetchErrs[symbol]; ok {
		return nil, err
	}
	if order, ok := m.orders[orderID]; ok {
		cp := *order
		return &cp, nil
	}
	return nil, types.ErrOrderNotFound
}

func (m *mapExchange) CreateOrder(ctx context.Context, req exchange.CreateOrderRequest) (*types.Order, error) {
	return nil, errors.New("not used")
}

func (m *mapExchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	return nil
}

func (m *mapExchange) MarketRules(ctx context.Context, symbol string) (types.MarketRules, error) {
	return types.MarketRules{Symbol: symbol}, nil
}

// balanceExchange adds the optional balance lookup.
type balanceExchange struct {
	*mapExchange
}

func (b *balanceExchange) FreeBalance(ctx context.Context, symbol string) (decimal.Decimal, error) {
	bal, ok := b.balances[symbol]
	if !ok {
		return decimal.Zero, errors.New("no balance")
	}
	return bal, nil
}

func TestSync_CleanState(t *testing.T) {
	ex := &mapExchange{orders: map[string]*types.Order{
		"ord-1": {ID: "ord-1", Symbol: "BTC/USDT", Status: types.OrderStatusOpen},
	}}
	r := New(ex, nil)

	report := r.Sync(context.Background(), map[string]types.PositionRecord{
		"BTC/USDT": {Symbol: "BTC/USDT", PendingOrderID: "ord-1"},
		"ETH/USDT": {Symbol: "ETH/USDT"}, // flat, nothing tracked
	})

	if report.DesyncsFound != 0 {
		t.Errorf("DesyncsFound = %d, want 0", report.DesyncsFound)
	}
	if len(report.Details) != 0 {
		t.Errorf("Details = %v, want empty", report.Details)
	}
}

func TestSync_OrphanedOrder(t *testing.T) {
	ex := &mapExchange{orders: map[string]*types.Order{}}
	r := New(ex, nil)

	report := r.Sync(context.Background(), map[string]types.PositionRecord{
		"BTC/USDT": {Symbol: "BTC/USDT", PendingOrderID: "ord-gone"},
	})

	if report.OrphanedOrders != 1 {
		t.Errorf("OrphanedOrders = %d, want 1", report.OrphanedOrders)
	}
	if report.DesyncsFound != 1 {
		t.Errorf("DesyncsFound = %d, want 1", report.DesyncsFound)
	}
	if len(report.Details) != 1 || !strings.Contains(report.Details[0], "orphaned") {
		t.Errorf("Details = %v, want one orphaned-order entry", report.Details)
	}
}

func TestSync_MissingFill(t *testing.T) {
	ex := &mapExchange{orders: map[string]*types.Order{
		"ord-filled": {
			ID:     "ord-filled",
			Symbol: "BTC/USDT",
			Status: types.OrderStatusClosed,
			Filled: d("0.001"),
			Amount: d("0.001"),
		},
	}}
	r := New(ex, nil)

	report := r.Sync(context.Background(), map[string]types.PositionRecord{
		"BTC/USDT": {Symbol: "BTC/USDT", PendingOrderID: "ord-filled"},
	})

	if report.MissingFills != 1 {
		t.Errorf("MissingFills = %d, want 1", report.MissingFills)
	}
	if report.DesyncsFound != 1 {
		t.Errorf("DesyncsFound = %d, want 1", report.DesyncsFound)
	}
}

func TestSync_FilledAndRecordedLocally(t *testing.T) {
	ex := &mapExchange{orders: map[string]*types.Order{
		"ord-filled": {
			ID:     "ord-filled",
			Symbol: "BTC/USDT",
			Status: types.OrderStatusClosed,
			Filled: d("0.001"),
		},
	}}
	r := New(ex, nil)

	// Local already recorded the fill: no desync.
	report := r.Sync(context.Background(), map[string]types.PositionRecord{
		"BTC/USDT": {Symbol: "BTC/USDT", Quantity: d("0.001"), PendingOrderID: "ord-filled"},
	})

	if report.DesyncsFound != 0 {
		t.Errorf("DesyncsFound = %d, want 0", report.DesyncsFound)
	}
}

func TestSync_PerSymbolErrorDoesNotAbort(t *testing.T) {
	ex := &mapExchange{
		orders:    map[string]*types.Order{},
		fetchErrs: map[string]error{"AAA/USDT": errors.New("exchange 500")},
	}
	r := New(ex, nil)

	report := r.Sync(context.Background(), map[string]types.PositionRecord{
		"AAA/USDT": {Symbol: "AAA/USDT", PendingOrderID: "ord-a"},
		"BBB/USDT": {Symbol: "BBB/USDT", PendingOrderID: "ord-b"}, // orphaned
	})

	// The erroring symbol contributed a detail, not a desync, and the
	// orphan on the healthy symbol was still found.
	if report.OrphanedOrders != 1 {
		t.Errorf("OrphanedOrders = %d, want 1", report.OrphanedOrders)
	}
	if len(report.Details) != 2 {
		t.Errorf("Details = %v, want 2 entries", report.Details)
	}
}

func TestSync_ClassificationExhaustive(t *testing.T) {
	ex := &mapExchange{orders: map[string]*types.Order{
		"ord-filled": {
			ID:     "ord-filled",
			Symbol: "CCC/USDT",
			Status: types.OrderStatusClosed,
			Filled: d("10"),
		},
	}}
	r := New(ex, nil)

	report := r.Sync(context.Background(), map[string]types.PositionRecord{
		"AAA/USDT": {Symbol: "AAA/USDT", PendingOrderID: "gone-1"},
		"BBB/USDT": {Symbol: "BBB/USDT", PendingOrderID: "gone-2"},
		"CCC/USDT": {Symbol: "CCC/USDT", PendingOrderID: "ord-filled"},
	})

	if report.DesyncsFound != report.OrphanedOrders+report.MissingFills {
		t.Errorf("DesyncsFound = %d, want OrphanedOrders(%d) + MissingFills(%d)",
			report.DesyncsFound, report.OrphanedOrders, report.MissingFills)
	}
	if report.DesyncsFound != 3 {
		t.Errorf("DesyncsFound = %d, want 3", report.DesyncsFound)
	}
}

func TestSync_BalanceAdvisory(t *testing.T) {
	ex := &balanceExchange{&mapExchange{
		orders:   map[string]*types.Order{},
		balances: map[string]decimal.Decimal{"BTC/USDT": d("0.0001")},
	}}
	r := New(ex, nil)

	report := r.Sync(context.Background(), map[string]types.PositionRecord{
		"BTC/USDT": {Symbol: "BTC/USDT", Quantity: d("0.5")},
	})

	// Balance shortfall is advisory: a detail, never a counted desync.
	if report.DesyncsFound != 0 {
		t.Errorf("DesyncsFound = %d, want 0", report.DesyncsFound)
	}
	if len(report.Details) != 1 || !strings.Contains(report.Details[0], "exceeds exchange balance") {
		t.Errorf("Details = %v, want one balance advisory", report.Details)
	}
}

func TestSync_DoesNotMutateCallerState(t *testing.T) {
	ex := &mapExchange{orders: map[string]*types.Order{}}
	r := New(ex, nil)

	states := map[string]types.PositionRecord{
		"BTC/USDT": {Symbol: "BTC/USDT", Quantity: d("1"), PendingOrderID: "ord-gone"},
	}
	r.Sync(context.Background(), states)

	got := states["BTC/USDT"]
	if !got.Quantity.Equal(d("1")) || got.PendingOrderID != "ord-gone" {
		t.Errorf("caller state mutated: %+v", got)
	}
}
