package orders

import (
	"github.com/shopspring/decimal"

	"github.com/quantfunk/futctl/internal/exchange"
)

// Spec is the closed set of order kinds the submitter accepts. Each
// variant carries exactly the fields its kind requires; the request it
// builds is then checked by the validation package before anything
// touches the wire.
type Spec interface {
	Kind() exchange.OrderType
	Request() exchange.OrderRequest
}

// Market executes immediately at the current price
type Market struct {
	Symbol   string
	Side     exchange.Side
	Quantity decimal.Decimal
}

func (m Market) Kind() exchange.OrderType { return exchange.OrderTypeMarket }

func (m Market) Request() exchange.OrderRequest {
	return exchange.OrderRequest{
		Symbol:   m.Symbol,
		Side:     m.Side,
		Type:     exchange.OrderTypeMarket,
		Quantity: m.Quantity,
	}
}

// Limit rests on the book at Price
type Limit struct {
	Symbol      string
	Side        exchange.Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	TimeInForce exchange.TimeInForce
}

func (l Limit) Kind() exchange.OrderType { return exchange.OrderTypeLimit }

func (l Limit) Request() exchange.OrderRequest {
	return exchange.OrderRequest{
		Symbol:      l.Symbol,
		Side:        l.Side,
		Type:        exchange.OrderTypeLimit,
		Quantity:    l.Quantity,
		Price:       l.Price,
		TimeInForce: l.TimeInForce,
	}
}

// StopLimit places a limit order at Price once StopPrice trades
type StopLimit struct {
	Symbol      string
	Side        exchange.Side
	Quantity    decimal.Decimal
	StopPrice   decimal.Decimal
	Price       decimal.Decimal
	TimeInForce exchange.TimeInForce
}

func (s StopLimit) Kind() exchange.OrderType { return exchange.OrderTypeStopLimit }

func (s StopLimit) Request() exchange.OrderRequest {
	return exchange.OrderRequest{
		Symbol:      s.Symbol,
		Side:        s.Side,
		Type:        exchange.OrderTypeStopLimit,
		Quantity:    s.Quantity,
		Price:       s.Price,
		StopPrice:   s.StopPrice,
		TimeInForce: s.TimeInForce,
	}
}

// StopMarket fires a market order once StopPrice trades
type StopMarket struct {
	Symbol    string
	Side      exchange.Side
	Quantity  decimal.Decimal
	StopPrice decimal.Decimal
}

func (s StopMarket) Kind() exchange.OrderType { return exchange.OrderTypeStopMarket }

func (s StopMarket) Request() exchange.OrderRequest {
	return exchange.OrderRequest{
		Symbol:    s.Symbol,
		Side:      s.Side,
		Type:      exchange.OrderTypeStopMarket,
		Quantity:  s.Quantity,
		StopPrice: s.StopPrice,
	}
}

// TakeProfitMarket fires a market order once the favorable trigger trades
type TakeProfitMarket struct {
	Symbol    string
	Side      exchange.Side
	Quantity  decimal.Decimal
	StopPrice decimal.Decimal
}

func (t TakeProfitMarket) Kind() exchange.OrderType { return exchange.OrderTypeTakeProfitMarket }

func (t TakeProfitMarket) Request() exchange.OrderRequest {
	return exchange.OrderRequest{
		Symbol:    t.Symbol,
		Side:      t.Side,
		Type:      exchange.OrderTypeTakeProfitMarket,
		Quantity:  t.Quantity,
		StopPrice: t.StopPrice,
	}
}
