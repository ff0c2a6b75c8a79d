package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfunk/futctl/internal/audit"
	"github.com/quantfunk/futctl/internal/exchange"
	"github.com/quantfunk/futctl/internal/validation"
)

// Submitter validates an order spec, submits it through the exchange
// client and normalizes the outcome. One audit event is emitted per
// attempt, success or failure.
type Submitter struct {
	client exchange.Client
	audit  *audit.Logger
	log    zerolog.Logger

	fallbackMinNotional decimal.Decimal
	fillPollDelay       time.Duration

	// sleep is swappable in tests
	sleep func(time.Duration)
}

// Option configures a Submitter
type Option func(*Submitter)

// WithFallbackMinNotional sets the minimum notional used when the
// exchange filter is unavailable
func WithFallbackMinNotional(min decimal.Decimal) Option {
	return func(s *Submitter) { s.fallbackMinNotional = min }
}

// WithFillPollDelay sets the market-order fill confirmation delay
func WithFillPollDelay(d time.Duration) Option {
	return func(s *Submitter) { s.fillPollDelay = d }
}

// WithSleeper replaces the wall-clock sleep (tests)
func WithSleeper(sleep func(time.Duration)) Option {
	return func(s *Submitter) { s.sleep = sleep }
}

// NewSubmitter creates a Submitter
func NewSubmitter(client exchange.Client, auditLog *audit.Logger, log zerolog.Logger, opts ...Option) *Submitter {
	s := &Submitter{
		client:              client,
		audit:               auditLog,
		log:                 log,
		fallbackMinNotional: decimal.NewFromInt(100),
		fillPollDelay:       500 * time.Millisecond,
		sleep:               time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs the full pipeline for one order: cheap validation, market
// lookups, full validation, placement. For market orders a still-NEW
// status is re-polled once; a lingering NEW is a warning, not an error.
func (s *Submitter) Submit(ctx context.Context, spec Spec) (*exchange.OrderResult, error) {
	req := spec.Request()
	req.ClientOrderID = newClientOrderID()

	// Cheap checks run before any network lookup
	req, basics := validation.CheckBasics(req)
	if err := basics.AsError(); err != nil {
		s.auditFailure(spec, req, err)
		return nil, err
	}

	mctx, err := s.marketContext(ctx, req)
	if err != nil {
		s.auditFailure(spec, req, err)
		return nil, err
	}

	checked, err := validation.Check(req, mctx)
	if err != nil {
		s.auditFailure(spec, req, err)
		return nil, err
	}
	for _, w := range checked.Warnings {
		s.log.Warn().
			Str("field", w.Field).
			Str("symbol", req.Symbol).
			Msg(w.Message)
	}

	result, err := s.client.PlaceOrder(ctx, checked.Request)
	if err != nil {
		if exchange.IsClockSkew(err) {
			// Resync so the next attempt is signed correctly; the failed
			// order itself is surfaced, never replayed.
			if _, syncErr := s.client.SyncClock(ctx); syncErr != nil {
				s.log.Error().Err(syncErr).Msg("Clock resync after recvWindow rejection failed")
			}
		}
		s.auditFailure(spec, checked.Request, err)
		return nil, err
	}

	if spec.Kind() == exchange.OrderTypeMarket && result.Status == exchange.OrderStatusNew {
		result = s.confirmFill(ctx, result)
	}

	s.audit.Log(&audit.Event{
		EventType: audit.EventTypeOrderPlaced,
		OrderKind: string(spec.Kind()),
		Symbol:    result.Symbol,
		OrderID:   result.OrderID,
		Success:   true,
		Detail: map[string]interface{}{
			"side":          string(result.Side),
			"status":        string(result.Status),
			"requested_qty": result.RequestedQty.String(),
			"executed_qty":  result.ExecutedQty.String(),
			"avg_price":     result.AvgPrice.String(),
		},
	})

	return result, nil
}

// Validate runs the full validation pipeline, market lookups included,
// without submitting anything. Orchestrators use it to reject a
// multi-order plan before any leg reaches the wire.
func (s *Submitter) Validate(ctx context.Context, spec Spec) error {
	req, basics := validation.CheckBasics(spec.Request())
	if err := basics.AsError(); err != nil {
		return err
	}
	mctx, err := s.marketContext(ctx, req)
	if err != nil {
		return err
	}
	_, err = validation.Check(req, mctx)
	return err
}

// Cancel cancels a resting order and audits the outcome
func (s *Submitter) Cancel(ctx context.Context, symbol string, orderID int64) (*exchange.OrderResult, error) {
	result, err := s.client.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		s.audit.Log(&audit.Event{
			EventType: audit.EventTypeOrderCanceled,
			Severity:  audit.SeverityError,
			Symbol:    symbol,
			OrderID:   orderID,
			Success:   false,
			ErrorMsg:  err.Error(),
		})
		return nil, err
	}
	s.audit.Log(&audit.Event{
		EventType: audit.EventTypeOrderCanceled,
		Symbol:    symbol,
		OrderID:   orderID,
		Success:   true,
	})
	return result, nil
}

// Status returns the latest snapshot of an order
func (s *Submitter) Status(ctx context.Context, symbol string, orderID int64) (*exchange.OrderResult, error) {
	return s.client.GetOrder(ctx, symbol, orderID)
}

// MarkPrice exposes the client's price lookup to orchestrators
func (s *Submitter) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.client.MarkPrice(ctx, symbol)
}

// Filters exposes the instrument rules to orchestrators
func (s *Submitter) Filters(ctx context.Context, symbol string) (*exchange.SymbolFilters, error) {
	return s.client.SymbolFilters(ctx, symbol)
}

// marketContext fetches the instrument filters and, when the request has
// no limit price or carries a trigger, the mark price. These are the only
// network calls validation depends on.
func (s *Submitter) marketContext(ctx context.Context, req exchange.OrderRequest) (validation.MarketContext, error) {
	mctx := validation.MarketContext{FallbackMinNotional: s.fallbackMinNotional}

	filters, err := s.client.SymbolFilters(ctx, req.Symbol)
	if err != nil {
		return mctx, err
	}
	mctx.Filters = filters

	needsMark := !req.Price.IsPositive() || !req.StopPrice.IsZero()
	if needsMark {
		mark, err := s.client.MarkPrice(ctx, req.Symbol)
		if err != nil {
			return mctx, err
		}
		mctx.MarkPrice = mark
	}

	return mctx, nil
}

// confirmFill polls a market order once after a short delay. Market
// orders are expected to fill immediately; NEW after the poll is logged
// as a warning and the snapshot returned as-is.
func (s *Submitter) confirmFill(ctx context.Context, result *exchange.OrderResult) *exchange.OrderResult {
	s.sleep(s.fillPollDelay)

	polled, err := s.client.GetOrder(ctx, result.Symbol, result.OrderID)
	if err != nil {
		s.log.Warn().
			Err(err).
			Int64("order_id", result.OrderID).
			Msg("Fill confirmation poll failed, returning submission snapshot")
		return result
	}
	if polled.Status == exchange.OrderStatusNew {
		s.log.Warn().
			Int64("order_id", polled.OrderID).
			Str("symbol", polled.Symbol).
			Msg("Market order still NEW after poll")
	}
	return polled
}

func (s *Submitter) auditFailure(spec Spec, req exchange.OrderRequest, err error) {
	eventType := audit.EventTypeOrderFailed
	if _, ok := err.(validation.Violations); ok {
		eventType = audit.EventTypeOrderRejected
	}
	s.audit.Log(&audit.Event{
		EventType: eventType,
		Severity:  audit.SeverityError,
		OrderKind: string(spec.Kind()),
		Symbol:    req.Symbol,
		Success:   false,
		ErrorMsg:  err.Error(),
		Detail: map[string]interface{}{
			"side":     string(req.Side),
			"quantity": req.Quantity.String(),
		},
	})
}

// newClientOrderID tags every submission so attempts are traceable in the
// audit stream even when the exchange call fails.
func newClientOrderID() string {
	return "futctl-" + uuid.NewString()[:28]
}
