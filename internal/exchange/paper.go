package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quanvu/dipbot/internal/types"
)

// Paper is an in-memory exchange for paper trading and tests. Orders rest as
// open until a market tick crosses their limit price, mirroring how a real
// spot venue fills resting limit orders.
type Paper struct {
	logger *slog.Logger

	mu         sync.RWMutex
	rules      map[string]types.MarketRules
	orders     map[string]*types.Order // order id -> order
	byClientID map[string]string       // client order id -> order id
	prices     map[string]decimal.Decimal
}

// NewPaper creates a paper exchange with the given rule set.
func NewPaper(rules map[string]types.MarketRules, logger *slog.Logger) *Paper {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = make(map[string]types.MarketRules)
	}
	return &Paper{
		logger:     logger,
		rules:      rules,
		orders:     make(map[string]*types.Order),
		byClientID: make(map[string]string),
		prices:     make(map[string]decimal.Decimal),
	}
}

// SetRules installs or replaces the rules for a symbol.
func (p *Paper) SetRules(rules types.MarketRules) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules[rules.Symbol] = rules
}

// CreateOrder places an order. A duplicate client order id returns the
// already-existing order, matching real exchange deduplication.
func (p *Paper) CreateOrder(ctx context.Context, req CreateOrderRequest) (*types.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rules[req.Symbol]; !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSymbol, req.Symbol)
	}
	if req.ClientOrderID != "" {
		if id, ok := p.byClientID[req.ClientOrderID]; ok {
			cp := *p.orders[id]
			return &cp, nil
		}
	}
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount %s", types.ErrInvalidOrder, req.Amount)
	}
	if req.Type == OrderTypeLimit && req.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price %s", types.ErrInvalidOrder, req.Price)
	}

	now := time.Now().UTC()
	order := &types.Order{
		ID:            uuid.New().String(),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Price:         req.Price,
		Amount:        req.Amount,
		Status:        types.OrderStatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Market orders fill immediately at the last tick.
	if req.Type == OrderTypeMarket {
		last, ok := p.prices[req.Symbol]
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrNoMarketData, req.Symbol)
		}
		order.Price = last
		p.fillLocked(order, last)
	}

	p.orders[order.ID] = order
	if req.ClientOrderID != "" {
		p.byClientID[req.ClientOrderID] = order.ID
	}

	p.logger.Debug("paper order created",
		"order_id", order.ID,
		"symbol", order.Symbol,
		"side", order.Side.String(),
		"status", order.Status.String(),
	)

	cp := *order
	return &cp, nil
}

// FetchOrder returns a copy of the order.
func (p *Paper) FetchOrder(ctx context.Context, orderID, symbol string) (*types.Order, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	order, ok := p.orders[orderID]
	if !ok || order.Symbol != symbol {
		return nil, fmt.Errorf("%w: %s", types.ErrOrderNotFound, orderID)
	}
	cp := *order
	return &cp, nil
}

// FetchOrderByClientID implements the optional ClientIDLookup capability.
func (p *Paper) FetchOrderByClientID(ctx context.Context, clientOrderID, symbol string) (*types.Order, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byClientID[clientOrderID]
	if !ok {
		return nil, fmt.Errorf("%w: client id %s", types.ErrOrderNotFound, clientOrderID)
	}
	order := p.orders[id]
	if order.Symbol != symbol {
		return nil, fmt.Errorf("%w: client id %s", types.ErrOrderNotFound, clientOrderID)
	}
	cp := *order
	return &cp, nil
}

// CancelOrder cancels an open order. Cancelling a terminal order is an error,
// as on a real venue.
func (p *Paper) CancelOrder(ctx context.Context, orderID, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok || order.Symbol != symbol {
		return fmt.Errorf("%w: %s", types.ErrOrderNotFound, orderID)
	}
	if order.Status.IsFinal() {
		return fmt.Errorf("order %s already %s", orderID, order.Status)
	}
	order.Status = types.OrderStatusCanceled
	order.UpdatedAt = time.Now().UTC()
	return nil
}

// MarketRules returns the rules for a symbol.
func (p *Paper) MarketRules(ctx context.Context, symbol string) (types.MarketRules, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rules, ok := p.rules[symbol]
	if !ok {
		return types.MarketRules{}, fmt.Errorf("%w: %s", types.ErrNoMarketRules, symbol)
	}
	return rules, nil
}

// Tick advances the simulated market: resting limit orders crossed by the
// new price fill completely at their limit.
func (p *Paper) Tick(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.prices[symbol] = price
	for _, order := range p.orders {
		if order.Symbol != symbol || order.Status.IsFinal() {
			continue
		}
		crossed := (order.Side == types.SideBuy && price.LessThanOrEqual(order.Price)) ||
			(order.Side == types.SideSell && price.GreaterThanOrEqual(order.Price))
		if crossed {
			p.fillLocked(order, order.Price)
		}
	}
}

// SetPartialFill marks an order partially filled; test hook for the
// stuck-partial protocol.
func (p *Paper) SetPartialFill(orderID string, filled decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok || order.Status.IsFinal() {
		return
	}
	order.Filled = filled
	order.Average = order.Price
	order.Status = types.OrderStatusPartialFill
	order.UpdatedAt = time.Now().UTC()
}

func (p *Paper) fillLocked(order *types.Order, at decimal.Decimal) {
	order.Filled = order.Amount
	order.Average = at
	order.Status = types.OrderStatusClosed
	order.UpdatedAt = time.Now().UTC()
}

// OpenOrders returns copies of all non-terminal orders, newest last.
func (p *Paper) OpenOrders() []types.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var open []types.Order
	for _, order := range p.orders {
		if !order.Status.IsFinal() {
			open = append(open, *order)
		}
	}
	return open
}
