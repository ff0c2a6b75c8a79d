package strategy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfunk/futctl/internal/audit"
	"github.com/quantfunk/futctl/internal/exchange"
	"github.com/quantfunk/futctl/internal/orders"
)

// GridParams describes a ladder of resting limit orders across a price
// range
type GridParams struct {
	Symbol           string
	LowerBound       decimal.Decimal
	UpperBound       decimal.Decimal
	LevelCount       int
	QuantityPerLevel decimal.Decimal
}

// GridLevel is one rung of the ladder. Skipped marks the level sitting
// exactly at the mark price, which gets neither side.
type GridLevel struct {
	Index   int
	Price   decimal.Decimal
	Side    exchange.Side
	Result  *exchange.OrderResult
	Err     error
	Skipped bool
}

// GridPlan is the one-shot placement result: every level with its order
// or failure marker. Rebalancing on fill is out of scope; the plan is
// not monitored after placement.
type GridPlan struct {
	Params    GridParams
	MarkPrice decimal.Decimal
	Levels    []GridLevel
}

// ActiveLevels returns the levels with a resting order
func (p *GridPlan) ActiveLevels() []GridLevel {
	var active []GridLevel
	for _, l := range p.Levels {
		if l.Err == nil && !l.Skipped {
			active = append(active, l)
		}
	}
	return active
}

// FailedLevels returns the levels whose submission failed
func (p *GridPlan) FailedLevels() []GridLevel {
	var failed []GridLevel
	for _, l := range p.Levels {
		if l.Err != nil {
			failed = append(failed, l)
		}
	}
	return failed
}

// Grid places the ladder: BUY limits below the mark price, SELL limits
// above, one at a time. A failed level is marked and excluded from the
// active set; the remaining levels are still attempted.
type Grid struct {
	submitter *orders.Submitter
	audit     *audit.Logger
	log       zerolog.Logger

	minLevels int
	maxLevels int
}

// GridOption configures the grid manager
type GridOption func(*Grid)

// WithGridBounds overrides the level count limits
func WithGridBounds(minLevels, maxLevels int) GridOption {
	return func(g *Grid) {
		g.minLevels = minLevels
		g.maxLevels = maxLevels
	}
}

// NewGrid creates the grid-level manager
func NewGrid(submitter *orders.Submitter, auditLog *audit.Logger, log zerolog.Logger, opts ...GridOption) *Grid {
	g := &Grid{
		submitter: submitter,
		audit:     auditLog,
		log:       log,
		minLevels: 2,
		maxLevels: 50,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GridLevels computes levelCount evenly spaced prices between lower and
// upper inclusive.
func GridLevels(lower, upper decimal.Decimal, count int) []decimal.Decimal {
	if count < 2 {
		return nil
	}
	span := upper.Sub(lower)
	step := span.Div(decimal.NewFromInt(int64(count - 1)))

	levels := make([]decimal.Decimal, count)
	for i := 0; i < count; i++ {
		levels[i] = lower.Add(step.Mul(decimal.NewFromInt(int64(i))))
	}
	// Pin the endpoints so accumulated division error cannot push the top
	// level past the configured bound.
	levels[count-1] = upper
	return levels
}

// Execute fetches the mark price once, assigns sides by position relative
// to it, and submits a GTC limit order per level.
func (g *Grid) Execute(ctx context.Context, params GridParams) (*GridPlan, error) {
	if err := g.checkParams(params); err != nil {
		return nil, err
	}

	mark, err := g.submitter.MarkPrice(ctx, params.Symbol)
	if err != nil {
		return nil, err
	}

	tick := decimal.Zero
	if filters, ferr := g.submitter.Filters(ctx, params.Symbol); ferr == nil {
		tick = filters.TickSize
	}

	if mark.LessThan(params.LowerBound) || mark.GreaterThan(params.UpperBound) {
		g.log.Warn().
			Str("mark_price", mark.String()).
			Str("lower", params.LowerBound.String()).
			Str("upper", params.UpperBound.String()).
			Msg("Mark price is outside the grid range; the ladder will be one-sided")
	}

	plan := &GridPlan{Params: params, MarkPrice: mark}

	g.audit.Log(&audit.Event{
		EventType: audit.EventTypeStrategyStarted,
		OrderKind: "GRID",
		Symbol:    params.Symbol,
		Success:   true,
		Detail: map[string]interface{}{
			"lower_bound":        params.LowerBound.String(),
			"upper_bound":        params.UpperBound.String(),
			"level_count":        params.LevelCount,
			"quantity_per_level": params.QuantityPerLevel.String(),
			"mark_price":         mark.String(),
		},
	})

	for i, price := range GridLevels(params.LowerBound, params.UpperBound, params.LevelCount) {
		// Quantize to the tick grid before anything else: the side must
		// be judged on the price actually submitted, and rounding can
		// carry a level across the mark.
		if tick.IsPositive() {
			price = price.Div(tick).Round(0).Mul(tick)
		}
		level := GridLevel{Index: i + 1, Price: price}

		switch {
		case price.LessThan(mark):
			level.Side = exchange.SideBuy
		case price.GreaterThan(mark):
			level.Side = exchange.SideSell
		default:
			level.Skipped = true
			g.log.Info().
				Int("level", i+1).
				Str("price", price.String()).
				Msg("Level sits at the mark price, skipping")
			plan.Levels = append(plan.Levels, level)
			continue
		}

		result, err := g.submitter.Submit(ctx, orders.Limit{
			Symbol:      params.Symbol,
			Side:        level.Side,
			Quantity:    params.QuantityPerLevel,
			Price:       price,
			TimeInForce: exchange.TimeInForceGTC,
		})
		if err != nil {
			level.Err = err
			g.log.Error().
				Err(err).
				Int("level", i+1).
				Str("price", price.String()).
				Str("side", string(level.Side)).
				Msg("Level placement failed, continuing with remaining levels")
		} else {
			level.Result = result
			g.log.Info().
				Int("level", i+1).
				Int64("order_id", result.OrderID).
				Str("price", price.String()).
				Str("side", string(level.Side)).
				Msg("Level placed")
		}
		plan.Levels = append(plan.Levels, level)
	}

	failed := plan.FailedLevels()
	eventType := audit.EventTypeStrategyCompleted
	severity := audit.SeverityInfo
	if len(failed) > 0 {
		eventType = audit.EventTypeStrategyPartial
		severity = audit.SeverityWarning
	}
	g.audit.Log(&audit.Event{
		EventType: eventType,
		Severity:  severity,
		OrderKind: "GRID",
		Symbol:    params.Symbol,
		Success:   len(failed) == 0,
		Detail: map[string]interface{}{
			"active_levels": len(plan.ActiveLevels()),
			"failed_levels": len(failed),
		},
	})

	if len(failed) > 0 && len(plan.ActiveLevels()) == 0 {
		return plan, &PartialFailureError{Strategy: "GRID", Err: fmt.Errorf("all %d levels failed", len(failed))}
	}
	if len(failed) > 0 {
		return plan, &PartialFailureError{Strategy: "GRID", Err: fmt.Errorf("%d of %d levels failed", len(failed), len(plan.Levels))}
	}
	return plan, nil
}

func (g *Grid) checkParams(params GridParams) error {
	if !params.LowerBound.IsPositive() || !params.UpperBound.IsPositive() {
		return fmt.Errorf("grid bounds must be positive")
	}
	if params.LowerBound.GreaterThanOrEqual(params.UpperBound) {
		return fmt.Errorf("lower bound %s must be below upper bound %s", params.LowerBound, params.UpperBound)
	}
	if params.LevelCount < g.minLevels || params.LevelCount > g.maxLevels {
		return fmt.Errorf("level count must be between %d and %d, got %d", g.minLevels, g.maxLevels, params.LevelCount)
	}
	if !params.QuantityPerLevel.IsPositive() {
		return fmt.Errorf("quantity per level must be positive, got %s", params.QuantityPerLevel)
	}
	return nil
}
