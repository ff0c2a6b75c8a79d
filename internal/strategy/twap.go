package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfunk/futctl/internal/audit"
	"github.com/quantfunk/futctl/internal/exchange"
	"github.com/quantfunk/futctl/internal/orders"
)

// TwapParams describes a time-sliced execution schedule
type TwapParams struct {
	Symbol        string
	Side          exchange.Side
	TotalQuantity decimal.Decimal
	SliceCount    int
	Interval      time.Duration
}

// SliceOutcome records one scheduled slice, submitted or failed
type SliceOutcome struct {
	Index    int
	Quantity decimal.Decimal
	Result   *exchange.OrderResult
	Err      error
}

// TwapReport enumerates per-slice outcomes and execution totals
type TwapReport struct {
	Params       TwapParams
	Slices       []SliceOutcome
	RequestedQty decimal.Decimal
	ExecutedQty  decimal.Decimal
	AvgPrice     decimal.Decimal
	StartedAt    time.Time
	FinishedAt   time.Time
}

// FailedSlices returns the indices of slices that did not submit
func (r *TwapReport) FailedSlices() []int {
	var failed []int
	for _, s := range r.Slices {
		if s.Err != nil {
			failed = append(failed, s.Index)
		}
	}
	return failed
}

// TWAP splits one large order into market-order slices submitted on a
// fixed interval. Slices run strictly in sequence; the wait is measured
// from the previous slice's submission, not its completion.
type TWAP struct {
	submitter *orders.Submitter
	audit     *audit.Logger
	log       zerolog.Logger

	minSlices   int
	maxSlices   int
	minInterval time.Duration

	sleep func(time.Duration)
	now   func() time.Time
}

// TwapOption configures the scheduler
type TwapOption func(*TWAP)

// WithTwapBounds overrides the slice count and interval limits
func WithTwapBounds(minSlices, maxSlices int, minInterval time.Duration) TwapOption {
	return func(t *TWAP) {
		t.minSlices = minSlices
		t.maxSlices = maxSlices
		t.minInterval = minInterval
	}
}

// WithTwapClock replaces the wall clock (tests)
func WithTwapClock(sleep func(time.Duration), now func() time.Time) TwapOption {
	return func(t *TWAP) {
		t.sleep = sleep
		t.now = now
	}
}

// NewTWAP creates the TWAP scheduler
func NewTWAP(submitter *orders.Submitter, auditLog *audit.Logger, log zerolog.Logger, opts ...TwapOption) *TWAP {
	t := &TWAP{
		submitter:   submitter,
		audit:       auditLog,
		log:         log,
		minSlices:   2,
		maxSlices:   100,
		minInterval: time.Second,
		sleep:       time.Sleep,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SliceQuantities computes the schedule's slice sizes: every slice is
// floor(total/count) aligned down to step, and the last slice absorbs the
// rounding remainder so the quantities always sum to total. With no step
// the flooring falls back to total's own decimal precision.
func SliceQuantities(total decimal.Decimal, count int, step decimal.Decimal) []decimal.Decimal {
	if count <= 0 {
		return nil
	}

	base := total.Div(decimal.NewFromInt(int64(count)))
	if step.IsPositive() {
		base = base.Div(step).Floor().Mul(step)
	} else {
		base = base.RoundDown(-total.Exponent())
	}

	slices := make([]decimal.Decimal, count)
	for i := 0; i < count-1; i++ {
		slices[i] = base
	}
	slices[count-1] = total.Sub(base.Mul(decimal.NewFromInt(int64(count - 1))))
	return slices
}

// Execute runs the schedule to completion. A failed slice is logged and
// its quantity skipped, never redistributed; the remaining slices still
// run on their ticks.
func (t *TWAP) Execute(ctx context.Context, params TwapParams) (*TwapReport, error) {
	if err := t.checkParams(params); err != nil {
		return nil, err
	}

	step := decimal.Zero
	if filters, err := t.submitter.Filters(ctx, params.Symbol); err == nil {
		step = filters.StepSize
	}

	quantities := SliceQuantities(params.TotalQuantity, params.SliceCount, step)
	if !quantities[0].IsPositive() {
		return nil, fmt.Errorf("total quantity %s split into %d slices leaves slices below the step size %s",
			params.TotalQuantity, params.SliceCount, step)
	}

	report := &TwapReport{
		Params:       params,
		RequestedQty: params.TotalQuantity,
		StartedAt:    t.now(),
	}

	t.audit.Log(&audit.Event{
		EventType: audit.EventTypeStrategyStarted,
		OrderKind: "TWAP",
		Symbol:    params.Symbol,
		Success:   true,
		Detail: map[string]interface{}{
			"side":             string(params.Side),
			"total_quantity":   params.TotalQuantity.String(),
			"slice_count":      params.SliceCount,
			"interval_seconds": params.Interval.Seconds(),
		},
	})

	executed := decimal.Zero
	notional := decimal.Zero
	var lastSubmission time.Time

	for i, qty := range quantities {
		if !lastSubmission.IsZero() {
			// Interval runs from the previous submission timestamp
			wakeAt := lastSubmission.Add(params.Interval)
			if wait := wakeAt.Sub(t.now()); wait > 0 {
				t.sleep(wait)
			}
		}
		lastSubmission = t.now()

		outcome := SliceOutcome{Index: i + 1, Quantity: qty}
		result, err := t.submitter.Submit(ctx, orders.Market{
			Symbol:   params.Symbol,
			Side:     params.Side,
			Quantity: qty,
		})
		if err != nil {
			outcome.Err = err
			t.log.Error().
				Err(err).
				Int("slice", i+1).
				Int("slice_count", params.SliceCount).
				Str("quantity", qty.String()).
				Msg("Slice submission failed, continuing with remaining schedule")
		} else {
			outcome.Result = result
			executed = executed.Add(result.ExecutedQty)
			notional = notional.Add(result.ExecutedQty.Mul(result.AvgPrice))
			t.log.Info().
				Int("slice", i+1).
				Int("slice_count", params.SliceCount).
				Str("executed_qty", result.ExecutedQty.String()).
				Str("avg_price", result.AvgPrice.String()).
				Msg("Slice filled")
		}
		report.Slices = append(report.Slices, outcome)
	}

	report.ExecutedQty = executed
	if executed.IsPositive() {
		report.AvgPrice = notional.Div(executed)
	}
	report.FinishedAt = t.now()

	failed := report.FailedSlices()
	eventType := audit.EventTypeStrategyCompleted
	severity := audit.SeverityInfo
	if len(failed) > 0 {
		eventType = audit.EventTypeStrategyPartial
		severity = audit.SeverityWarning
	}
	t.audit.Log(&audit.Event{
		EventType: eventType,
		Severity:  severity,
		OrderKind: "TWAP",
		Symbol:    params.Symbol,
		Success:   len(failed) == 0,
		Detail: map[string]interface{}{
			"requested_qty": report.RequestedQty.String(),
			"executed_qty":  report.ExecutedQty.String(),
			"failed_slices": failed,
		},
	})

	if len(failed) == len(report.Slices) {
		return report, &PartialFailureError{Strategy: "TWAP", Err: fmt.Errorf("all %d slices failed", len(failed))}
	}
	if len(failed) > 0 {
		return report, &PartialFailureError{Strategy: "TWAP", Err: fmt.Errorf("%d of %d slices failed", len(failed), len(report.Slices))}
	}
	return report, nil
}

func (t *TWAP) checkParams(params TwapParams) error {
	if !params.TotalQuantity.IsPositive() {
		return fmt.Errorf("total quantity must be positive, got %s", params.TotalQuantity)
	}
	if params.SliceCount < t.minSlices || params.SliceCount > t.maxSlices {
		return fmt.Errorf("slice count must be between %d and %d, got %d", t.minSlices, t.maxSlices, params.SliceCount)
	}
	if params.Interval < t.minInterval {
		return fmt.Errorf("interval must be at least %s, got %s", t.minInterval, params.Interval)
	}
	return nil
}
