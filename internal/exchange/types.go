package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the closed set of order kinds this client submits
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeStopLimit        OrderType = "STOP_LIMIT"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// TimeInForce controls how long a resting order stays on the book
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// OrderStatus represents the exchange-reported state of an order
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether the order can no longer change state
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// OrderRequest is a fully specified order ready for submission. Price is
// required for LIMIT/STOP_LIMIT, StopPrice for the three stop kinds;
// the validation package enforces this before a request reaches the wire.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	TimeInForce   TimeInForce
	ClientOrderID string
}

// OrderResult is an immutable snapshot of an order at response time,
// owned by the caller that requested it.
type OrderResult struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Status        OrderStatus
	RequestedQty  decimal.Decimal
	ExecutedQty   decimal.Decimal
	AvgPrice      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	SubmittedAt   time.Time
	UpdatedAt     time.Time
}

// SymbolFilters carries the per-instrument trading rules the validator
// checks against: LOT_SIZE, PRICE_FILTER and MIN_NOTIONAL.
type SymbolFilters struct {
	Symbol      string
	StepSize    decimal.Decimal
	TickSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinPrice    decimal.Decimal
	MinNotional decimal.Decimal
}

// Account is a snapshot of futures wallet balances
type Account struct {
	TotalBalance     decimal.Decimal
	AvailableBalance decimal.Decimal
	UnrealizedPnL    decimal.Decimal
}

// Position is a snapshot of one open position. Amount is signed:
// positive for longs, negative for shorts.
type Position struct {
	Symbol           string
	Amount           decimal.Decimal
	EntryPrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	LiquidationPrice decimal.Decimal
	Leverage         int
}

// Side returns the direction of the position
func (p Position) Side() Side {
	if p.Amount.IsNegative() {
		return SideSell
	}
	return SideBuy
}
