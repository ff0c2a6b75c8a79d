package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MockClient is an in-memory Client used by tests and paper sessions.
// Market orders fill immediately at the configured mark price; other
// kinds rest with status NEW until cancelled.
type MockClient struct {
	prices    map[string]decimal.Decimal
	filters   map[string]*SymbolFilters
	orders    map[int64]*OrderResult
	positions []Position
	clock     *Clock

	nextID     int64
	placements int

	// PlaceErrs fails the Nth placement (1-based) with the given error
	PlaceErrs map[int]error
	// CancelErr fails every cancel when set
	CancelErr error
	// TimeErr fails ServerTime when set
	TimeErr error
	// ServerOffset skews the reported server time
	ServerOffset time.Duration

	// Placed records every accepted request in submission order
	Placed []OrderRequest
	// Cancelled records cancelled order ids in order
	Cancelled []int64
}

// NewMockClient creates an empty mock exchange
func NewMockClient() *MockClient {
	return &MockClient{
		prices:    make(map[string]decimal.Decimal),
		filters:   make(map[string]*SymbolFilters),
		orders:    make(map[int64]*OrderResult),
		clock:     &Clock{},
		PlaceErrs: make(map[int]error),
	}
}

// SetMarkPrice sets the mark price for a symbol
func (m *MockClient) SetMarkPrice(symbol string, price decimal.Decimal) {
	m.prices[symbol] = price
}

// SetFilters sets the instrument rules for a symbol
func (m *MockClient) SetFilters(f *SymbolFilters) {
	m.filters[f.Symbol] = f
}

// SetPosition adds an open position snapshot
func (m *MockClient) SetPosition(p Position) {
	m.positions = append(m.positions, p)
}

func (m *MockClient) PlaceOrder(_ context.Context, req OrderRequest) (*OrderResult, error) {
	m.placements++
	if err, ok := m.PlaceErrs[m.placements]; ok {
		return nil, err
	}

	m.nextID++
	now := time.Now()

	result := &OrderResult{
		OrderID:       m.nextID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        OrderStatusNew,
		RequestedQty:  req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}

	if req.Type == OrderTypeMarket {
		result.Status = OrderStatusFilled
		result.ExecutedQty = req.Quantity
		result.AvgPrice = m.prices[req.Symbol]
	}

	m.orders[result.OrderID] = result
	m.Placed = append(m.Placed, req)

	snapshot := *result
	return &snapshot, nil
}

func (m *MockClient) CancelOrder(_ context.Context, _ string, orderID int64) (*OrderResult, error) {
	if m.CancelErr != nil {
		return nil, m.CancelErr
	}
	order, ok := m.orders[orderID]
	if !ok {
		return nil, &Rejection{Message: fmt.Sprintf("unknown order: %d", orderID)}
	}
	if order.Status.Terminal() {
		return nil, &Rejection{Message: fmt.Sprintf("order %d already %s", orderID, order.Status)}
	}
	order.Status = OrderStatusCanceled
	order.UpdatedAt = time.Now()
	m.Cancelled = append(m.Cancelled, orderID)

	snapshot := *order
	return &snapshot, nil
}

func (m *MockClient) GetOrder(_ context.Context, _ string, orderID int64) (*OrderResult, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return nil, &Rejection{Message: fmt.Sprintf("unknown order: %d", orderID)}
	}
	snapshot := *order
	return &snapshot, nil
}

func (m *MockClient) OpenOrders(_ context.Context, symbol string) ([]OrderResult, error) {
	var open []OrderResult
	for _, o := range m.orders {
		if o.Status.Terminal() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		open = append(open, *o)
	}
	return open, nil
}

func (m *MockClient) MarkPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, &Rejection{Message: fmt.Sprintf("no mark price for symbol %s", symbol)}
	}
	return price, nil
}

func (m *MockClient) SymbolFilters(_ context.Context, symbol string) (*SymbolFilters, error) {
	f, ok := m.filters[symbol]
	if !ok {
		return nil, &Rejection{Message: fmt.Sprintf("symbol not found: %s", symbol)}
	}
	return f, nil
}

func (m *MockClient) ServerTime(_ context.Context) (int64, error) {
	if m.TimeErr != nil {
		return 0, m.TimeErr
	}
	return time.Now().Add(m.ServerOffset).UnixMilli(), nil
}

func (m *MockClient) SyncClock(ctx context.Context) (time.Duration, error) {
	return m.clock.Sync(ctx, m.ServerTime)
}

func (m *MockClient) ClockOffset() time.Duration {
	return m.clock.Offset()
}

func (m *MockClient) Ping(_ context.Context) error { return nil }

func (m *MockClient) Account(_ context.Context) (*Account, error) {
	return &Account{
		TotalBalance:     decimal.NewFromInt(10000),
		AvailableBalance: decimal.NewFromInt(10000),
	}, nil
}

func (m *MockClient) Positions(_ context.Context, symbol string) ([]Position, error) {
	var open []Position
	for _, p := range m.positions {
		if p.Amount.IsZero() {
			continue
		}
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		open = append(open, p)
	}
	return open, nil
}

func (m *MockClient) SetLeverage(_ context.Context, _ string, _ int) error { return nil }

// FillOrder transitions a resting order to FILLED (test hook)
func (m *MockClient) FillOrder(orderID int64, avgPrice decimal.Decimal) {
	if order, ok := m.orders[orderID]; ok {
		order.Status = OrderStatusFilled
		order.ExecutedQty = order.RequestedQty
		order.AvgPrice = avgPrice
		order.UpdatedAt = time.Now()
	}
}
