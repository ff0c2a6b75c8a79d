package strategy

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfunk/futctl/internal/audit"
	"github.com/quantfunk/futctl/internal/exchange"
	"github.com/quantfunk/futctl/internal/orders"
	"github.com/quantfunk/futctl/internal/validation"
)

// OcoState tracks the pair manager's progress
type OcoState string

const (
	OcoStatePlanned        OcoState = "PLANNED"
	OcoStateLegsSubmitted  OcoState = "LEGS_SUBMITTED"
	OcoStateResolved       OcoState = "RESOLVED"
	OcoStatePartialFailure OcoState = "PARTIAL_FAILURE"
)

// OcoParams describes a protective pair for an open position: a
// take-profit trigger in the favorable direction and a stop in the
// adverse one, both on the closing side.
type OcoParams struct {
	Symbol          string
	Side            exchange.Side
	Quantity        decimal.Decimal
	TakeProfitPrice decimal.Decimal
	StopPrice       decimal.Decimal
}

// OcoPlan is the pair manager's result. The exchange does not link the
// two legs: once both rest, cancelling the sibling after a fill is the
// user's job (documented limitation, no live monitoring here).
type OcoPlan struct {
	Params OcoParams
	State  OcoState

	TakeProfitLeg *exchange.OrderResult
	StopLeg       *exchange.OrderResult

	// OrphanOrderID identifies the leg left resting without its sibling
	// when the second submission failed. It is never auto-cancelled:
	// it may be the only protective order on an open position.
	OrphanOrderID int64
}

// OCO places both protective legs near-simultaneously
type OCO struct {
	submitter *orders.Submitter
	audit     *audit.Logger
	log       zerolog.Logger
}

// NewOCO creates the OCO pair manager
func NewOCO(submitter *orders.Submitter, auditLog *audit.Logger, log zerolog.Logger) *OCO {
	return &OCO{submitter: submitter, audit: auditLog, log: log}
}

// Execute validates both legs independently, then submits the take-profit
// leg followed by the stop leg. Leg order matters only for audit clarity.
// A second-leg failure leaves the plan in PARTIAL_FAILURE with the
// orphaned leg's id surfaced for manual cancellation.
func (o *OCO) Execute(ctx context.Context, params OcoParams) (*OcoPlan, error) {
	plan := &OcoPlan{Params: params, State: OcoStatePlanned}

	tpSpec := orders.TakeProfitMarket{
		Symbol:    params.Symbol,
		Side:      params.Side,
		Quantity:  params.Quantity,
		StopPrice: params.TakeProfitPrice,
	}
	stopSpec := orders.StopMarket{
		Symbol:    params.Symbol,
		Side:      params.Side,
		Quantity:  params.Quantity,
		StopPrice: params.StopPrice,
	}

	// Both legs run the full validation pipeline, trigger-direction and
	// precision rules included, before either is submitted. A locally
	// detectable bad stop leg must never strand a freshly placed
	// take-profit.
	var violations validation.Violations
	for _, spec := range []orders.Spec{tpSpec, stopSpec} {
		if err := o.submitter.Validate(ctx, spec); err != nil {
			var legViolations validation.Violations
			if errors.As(err, &legViolations) {
				violations = append(violations, legViolations...)
				continue
			}
			return plan, err
		}
	}
	if err := violations.AsError(); err != nil {
		return plan, err
	}

	o.audit.Log(&audit.Event{
		EventType: audit.EventTypeStrategyStarted,
		OrderKind: "OCO",
		Symbol:    params.Symbol,
		Success:   true,
		Detail: map[string]interface{}{
			"side":              string(params.Side),
			"quantity":          params.Quantity.String(),
			"take_profit_price": params.TakeProfitPrice.String(),
			"stop_price":        params.StopPrice.String(),
		},
	})

	tpResult, err := o.submitter.Submit(ctx, tpSpec)
	if err != nil {
		// Nothing was placed; a clean failure, not a partial one.
		return plan, err
	}
	plan.TakeProfitLeg = tpResult
	plan.State = OcoStateLegsSubmitted

	o.log.Info().
		Int64("order_id", tpResult.OrderID).
		Str("trigger", params.TakeProfitPrice.String()).
		Msg("Take-profit leg placed")

	stopResult, err := o.submitter.Submit(ctx, stopSpec)
	if err != nil {
		plan.State = OcoStatePartialFailure
		plan.OrphanOrderID = tpResult.OrderID

		o.log.Warn().
			Int64("orphan_order_id", tpResult.OrderID).
			Err(err).
			Msg("Stop leg failed after take-profit leg was placed; take-profit order is resting UNPROTECTED and must be cancelled manually")

		o.audit.Log(&audit.Event{
			EventType: audit.EventTypeStrategyPartial,
			Severity:  audit.SeverityWarning,
			OrderKind: "OCO",
			Symbol:    params.Symbol,
			OrderID:   tpResult.OrderID,
			Success:   false,
			ErrorMsg:  err.Error(),
			Detail:    map[string]interface{}{"orphan_leg": "take_profit"},
		})

		return plan, &PartialFailureError{Strategy: "OCO", OrphanOrderID: tpResult.OrderID, Err: err}
	}
	plan.StopLeg = stopResult
	plan.State = OcoStateResolved

	o.log.Info().
		Int64("order_id", stopResult.OrderID).
		Str("trigger", params.StopPrice.String()).
		Msg("Stop leg placed")

	o.audit.Log(&audit.Event{
		EventType: audit.EventTypeStrategyCompleted,
		OrderKind: "OCO",
		Symbol:    params.Symbol,
		Success:   true,
		Detail: map[string]interface{}{
			"take_profit_order_id": tpResult.OrderID,
			"stop_order_id":        stopResult.OrderID,
		},
	})

	return plan, nil
}
