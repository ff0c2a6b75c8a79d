package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfunk/futctl/internal/config"
)

// BinanceClient implements Client against Binance USDT-M futures.
type BinanceClient struct {
	client *futures.Client
	clock  *Clock
	log    zerolog.Logger

	// exchangeInfo is immutable per session; filters are cached after the
	// first lookup per symbol
	filters map[string]*SymbolFilters

	recvWindow time.Duration
}

// NewBinanceClient builds a futures client from exchange configuration.
// The clock starts unsynced; SyncClock must run before the first signed
// request.
func NewBinanceClient(cfg config.ExchangeConfig, log zerolog.Logger) *BinanceClient {
	futures.UseTestnet = cfg.Testnet

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	client.HTTPClient.Timeout = cfg.Timeout()

	if cfg.Testnet {
		log.Info().Msg("Binance futures client initialized (TESTNET mode)")
	} else {
		log.Warn().Msg("Binance futures client initialized (LIVE TRADING mode)")
	}

	return &BinanceClient{
		client:     client,
		clock:      &Clock{},
		log:        log,
		filters:    make(map[string]*SymbolFilters),
		recvWindow: cfg.RecvWindow(),
	}
}

// recvWindowOpt bounds the freshness of every signed request
func (b *BinanceClient) recvWindowOpt() futures.RequestOption {
	return futures.WithRecvWindow(b.recvWindow.Milliseconds())
}

// SyncClock fetches the server time and stores the offset on both the
// adapter and the underlying signing client.
func (b *BinanceClient) SyncClock(ctx context.Context) (time.Duration, error) {
	offset, err := b.clock.Sync(ctx, b.ServerTime)
	if err != nil {
		return 0, err
	}
	// The SDK subtracts TimeOffset (local minus server) from the local
	// timestamp when signing; our offset is server minus local.
	b.client.TimeOffset = -b.clock.OffsetMillis()

	b.log.Debug().
		Int64("offset_ms", b.clock.OffsetMillis()).
		Msg("Clock synchronized with exchange")
	return offset, nil
}

// ClockOffset returns the currently applied clock offset
func (b *BinanceClient) ClockOffset() time.Duration {
	return b.clock.Offset()
}

// ServerTime returns the exchange clock in unix milliseconds
func (b *BinanceClient) ServerTime(ctx context.Context) (int64, error) {
	serverTime, err := b.client.NewServerTimeService().Do(ctx)
	if err != nil {
		return 0, normalizeError(err)
	}
	return serverTime, nil
}

// Ping checks connectivity to the futures REST endpoint
func (b *BinanceClient) Ping(ctx context.Context) error {
	if err := b.client.NewPingService().Do(ctx); err != nil {
		return normalizeError(err)
	}
	return nil
}

// PlaceOrder submits a signed order. No retry here: a failed placement is
// normalized and returned to the caller as-is.
func (b *BinanceClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(toBinanceOrderType(req.Type)).
		Quantity(req.Quantity.String())

	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	if !req.Price.IsZero() {
		svc = svc.Price(req.Price.String())
	}
	if !req.StopPrice.IsZero() {
		svc = svc.StopPrice(req.StopPrice.String())
	}
	if req.TimeInForce != "" {
		svc = svc.TimeInForce(futures.TimeInForceType(req.TimeInForce))
	}

	resp, err := svc.Do(ctx, b.recvWindowOpt())
	if err != nil {
		nerr := normalizeError(err)
		b.log.Warn().
			Err(nerr).
			Str("symbol", req.Symbol).
			Str("side", string(req.Side)).
			Str("type", string(req.Type)).
			Msg("Order placement failed")
		return nil, nerr
	}

	result := convertCreateResponse(resp, req)

	b.log.Info().
		Int64("order_id", result.OrderID).
		Str("symbol", result.Symbol).
		Str("side", string(result.Side)).
		Str("type", string(result.Type)).
		Str("status", string(result.Status)).
		Str("quantity", result.RequestedQty.String()).
		Msg("Order placed")

	return result, nil
}

// CancelOrder cancels a resting order
func (b *BinanceClient) CancelOrder(ctx context.Context, symbol string, orderID int64) (*OrderResult, error) {
	resp, err := b.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, normalizeError(err)
	}

	b.log.Info().
		Int64("order_id", orderID).
		Str("symbol", symbol).
		Msg("Order cancelled")

	return &OrderResult{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          Side(resp.Side),
		Type:          fromBinanceOrderType(resp.Type),
		Status:        OrderStatus(resp.Status),
		RequestedQty:  parseDecimal(resp.OrigQuantity),
		ExecutedQty:   parseDecimal(resp.ExecutedQuantity),
		Price:         parseDecimal(resp.Price),
		StopPrice:     parseDecimal(resp.StopPrice),
		UpdatedAt:     time.Now(),
	}, nil
}

// GetOrder queries the latest snapshot of an order
func (b *BinanceClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*OrderResult, error) {
	order, err := b.client.NewGetOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, normalizeError(err)
	}
	return convertOrder(order), nil
}

// OpenOrders lists resting orders; symbol may be empty for all symbols
func (b *BinanceClient) OpenOrders(ctx context.Context, symbol string) ([]OrderResult, error) {
	svc := b.client.NewListOpenOrdersService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	orders, err := svc.Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, normalizeError(err)
	}

	results := make([]OrderResult, 0, len(orders))
	for _, o := range orders {
		results = append(results, *convertOrder(o))
	}
	return results, nil
}

// MarkPrice returns the current mark price for a symbol
func (b *BinanceClient) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	indexes, err := b.client.NewPremiumIndexService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return decimal.Zero, normalizeError(err)
	}
	if len(indexes) == 0 {
		return decimal.Zero, &Rejection{Message: fmt.Sprintf("no mark price for symbol %s", symbol)}
	}

	price, err := decimal.NewFromString(indexes[0].MarkPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable mark price %q: %w", indexes[0].MarkPrice, err)
	}
	return price, nil
}

// SymbolFilters returns the instrument's LOT_SIZE / PRICE_FILTER /
// MIN_NOTIONAL rules, fetched from exchangeInfo and cached per session.
func (b *BinanceClient) SymbolFilters(ctx context.Context, symbol string) (*SymbolFilters, error) {
	if f, ok := b.filters[symbol]; ok {
		return f, nil
	}

	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, normalizeError(err)
	}

	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}

		f := &SymbolFilters{Symbol: symbol}
		if lot := s.LotSizeFilter(); lot != nil {
			f.StepSize = parseDecimal(lot.StepSize)
			f.MinQty = parseDecimal(lot.MinQuantity)
		}
		if pf := s.PriceFilter(); pf != nil {
			f.TickSize = parseDecimal(pf.TickSize)
			f.MinPrice = parseDecimal(pf.MinPrice)
		}
		if mn := s.MinNotionalFilter(); mn != nil {
			f.MinNotional = parseDecimal(mn.Notional)
		}

		b.filters[symbol] = f
		return f, nil
	}

	return nil, &Rejection{Message: fmt.Sprintf("symbol not found: %s", symbol)}
}

// Account returns a wallet balance snapshot
func (b *BinanceClient) Account(ctx context.Context) (*Account, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, normalizeError(err)
	}
	return &Account{
		TotalBalance:     parseDecimal(acct.TotalWalletBalance),
		AvailableBalance: parseDecimal(acct.AvailableBalance),
		UnrealizedPnL:    parseDecimal(acct.TotalUnrealizedProfit),
	}, nil
}

// Positions returns the open positions, skipping flat entries; symbol
// may be empty for all symbols.
func (b *BinanceClient) Positions(ctx context.Context, symbol string) ([]Position, error) {
	svc := b.client.NewGetPositionRiskService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	risks, err := svc.Do(ctx, b.recvWindowOpt())
	if err != nil {
		return nil, normalizeError(err)
	}

	var positions []Position
	for _, r := range risks {
		amount := parseDecimal(r.PositionAmt)
		if amount.IsZero() {
			continue
		}
		positions = append(positions, Position{
			Symbol:           r.Symbol,
			Amount:           amount,
			EntryPrice:       parseDecimal(r.EntryPrice),
			MarkPrice:        parseDecimal(r.MarkPrice),
			UnrealizedPnL:    parseDecimal(r.UnRealizedProfit),
			LiquidationPrice: parseDecimal(r.LiquidationPrice),
			Leverage:         int(parseDecimal(r.Leverage).IntPart()),
		})
	}
	return positions, nil
}

// SetLeverage changes the leverage multiplier for a symbol
func (b *BinanceClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := b.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx, b.recvWindowOpt())
	if err != nil {
		return normalizeError(err)
	}

	b.log.Info().
		Str("symbol", symbol).
		Int("leverage", leverage).
		Msg("Leverage updated")
	return nil
}

// Conversion helpers

func toBinanceOrderType(t OrderType) futures.OrderType {
	switch t {
	case OrderTypeMarket:
		return futures.OrderTypeMarket
	case OrderTypeLimit:
		return futures.OrderTypeLimit
	case OrderTypeStopLimit:
		return futures.OrderTypeStop
	case OrderTypeStopMarket:
		return futures.OrderTypeStopMarket
	case OrderTypeTakeProfitMarket:
		return futures.OrderTypeTakeProfitMarket
	}
	return futures.OrderType(t)
}

func fromBinanceOrderType(t futures.OrderType) OrderType {
	switch t {
	case futures.OrderTypeStop:
		return OrderTypeStopLimit
	case futures.OrderTypeStopMarket:
		return OrderTypeStopMarket
	case futures.OrderTypeTakeProfitMarket:
		return OrderTypeTakeProfitMarket
	case futures.OrderTypeLimit:
		return OrderTypeLimit
	case futures.OrderTypeMarket:
		return OrderTypeMarket
	}
	return OrderType(t)
}

func convertCreateResponse(resp *futures.CreateOrderResponse, req OrderRequest) *OrderResult {
	now := time.Now()
	return &OrderResult{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        OrderStatus(resp.Status),
		RequestedQty:  parseDecimal(resp.OrigQuantity),
		ExecutedQty:   parseDecimal(resp.ExecutedQuantity),
		AvgPrice:      parseDecimal(resp.AvgPrice),
		Price:         parseDecimal(resp.Price),
		StopPrice:     parseDecimal(resp.StopPrice),
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
}

func convertOrder(o *futures.Order) *OrderResult {
	return &OrderResult{
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          Side(o.Side),
		Type:          fromBinanceOrderType(o.Type),
		Status:        OrderStatus(o.Status),
		RequestedQty:  parseDecimal(o.OrigQuantity),
		ExecutedQty:   parseDecimal(o.ExecutedQuantity),
		AvgPrice:      parseDecimal(o.AvgPrice),
		Price:         parseDecimal(o.Price),
		StopPrice:     parseDecimal(o.StopPrice),
		SubmittedAt:   time.UnixMilli(o.Time),
		UpdatedAt:     time.UnixMilli(o.UpdateTime),
	}
}

// parseDecimal tolerates the empty strings Binance uses for absent fields
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
