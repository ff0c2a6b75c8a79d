package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantfunk/futctl/internal/exchange"
)

// symbolPattern matches uppercase alphanumeric pairs with a known quote
// asset suffix (BTCUSDT, ETHUSDC, ...)
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}(USDT|USDC)$`)

// Violation is a single validation failure. Precision marks tick/step
// mismatches, which are rejected rather than silently rounded.
type Violation struct {
	Field     string
	Message   string
	Precision bool
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Violations accumulates every violated rule so callers can show the
// user all problems at once.
type Violations []Violation

func (v Violations) Error() string {
	if len(v) == 0 {
		return ""
	}
	if len(v) == 1 {
		return v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, violation := range v {
		msgs[i] = violation.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// AsError returns the list as an error, or nil when empty
func (v Violations) AsError() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Warning is a suspicious-but-allowed condition, logged rather than
// rejected (e.g. stop-limit limit price on the wrong side of the trigger).
type Warning struct {
	Field   string
	Message string
}

// MarketContext carries the instrument rules and reference price needed
// for the checks that depend on exchange state. Validation itself stays
// pure: the lookups happen in the caller, once, before Check.
type MarketContext struct {
	Filters   *exchange.SymbolFilters
	MarkPrice decimal.Decimal
	// FallbackMinNotional applies when the exchange filter is absent
	FallbackMinNotional decimal.Decimal
}

// Result is a validated, normalized request plus any warnings
type Result struct {
	Request  exchange.OrderRequest
	Warnings []Warning
}

// CheckBasics runs the checks that need no exchange state: symbol shape,
// enum membership, per-kind required fields, positivity. It returns the
// normalized request (symbol uppercased, default TIF applied) and every
// violation found. Callers run this before spending a network round trip
// on the market-dependent checks.
func CheckBasics(req exchange.OrderRequest) (exchange.OrderRequest, Violations) {
	var violations Violations

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		violations = append(violations, Violation{Field: "symbol", Message: "cannot be empty"})
	} else if !symbolPattern.MatchString(req.Symbol) {
		violations = append(violations, Violation{
			Field:   "symbol",
			Message: fmt.Sprintf("invalid format %q, expected e.g. BTCUSDT", req.Symbol),
		})
	}

	if req.Side != exchange.SideBuy && req.Side != exchange.SideSell {
		violations = append(violations, Violation{
			Field:   "side",
			Message: fmt.Sprintf("must be BUY or SELL, got %q", req.Side),
		})
	}

	switch req.Type {
	case exchange.OrderTypeMarket, exchange.OrderTypeLimit, exchange.OrderTypeStopLimit,
		exchange.OrderTypeStopMarket, exchange.OrderTypeTakeProfitMarket:
	default:
		violations = append(violations, Violation{
			Field:   "type",
			Message: fmt.Sprintf("unknown order type %q", req.Type),
		})
	}

	if !req.Quantity.IsPositive() {
		violations = append(violations, Violation{
			Field:   "quantity",
			Message: fmt.Sprintf("must be positive, got %s", req.Quantity),
		})
	}

	if requiresPrice(req.Type) {
		if !req.Price.IsPositive() {
			violations = append(violations, Violation{
				Field:   "price",
				Message: fmt.Sprintf("required for %s orders and must be positive", req.Type),
			})
		}
	} else if !req.Price.IsZero() {
		violations = append(violations, Violation{
			Field:   "price",
			Message: fmt.Sprintf("not applicable to %s orders", req.Type),
		})
	}

	if requiresStopPrice(req.Type) {
		if !req.StopPrice.IsPositive() {
			violations = append(violations, Violation{
				Field:   "stop_price",
				Message: fmt.Sprintf("required for %s orders and must be positive", req.Type),
			})
		}
	} else if !req.StopPrice.IsZero() {
		violations = append(violations, Violation{
			Field:   "stop_price",
			Message: fmt.Sprintf("not applicable to %s orders", req.Type),
		})
	}

	if supportsTIF(req.Type) {
		if req.TimeInForce == "" {
			req.TimeInForce = exchange.TimeInForceGTC
		} else if req.TimeInForce != exchange.TimeInForceGTC &&
			req.TimeInForce != exchange.TimeInForceIOC &&
			req.TimeInForce != exchange.TimeInForceFOK {
			violations = append(violations, Violation{
				Field:   "time_in_force",
				Message: fmt.Sprintf("must be GTC, IOC or FOK, got %q", req.TimeInForce),
			})
		}
	} else {
		req.TimeInForce = ""
	}

	return req, violations
}

// Check validates an order end to end: the basic checks, then precision
// against the instrument's step/tick sizes, the minimum-notional rule and
// the kind-specific relational rules. All violations are accumulated; a
// failed basic stage short-circuits only the market-dependent stage.
func Check(req exchange.OrderRequest, mctx MarketContext) (*Result, error) {
	req, violations := CheckBasics(req)
	if len(violations) > 0 {
		return nil, violations
	}

	var warnings []Warning

	if mctx.Filters != nil {
		violations = append(violations, checkPrecision(req, mctx.Filters)...)
	}
	violations = append(violations, checkNotional(req, mctx)...)

	relViolations, relWarnings := checkRelational(req, mctx.MarkPrice)
	violations = append(violations, relViolations...)
	warnings = append(warnings, relWarnings...)

	if err := violations.AsError(); err != nil {
		return nil, err
	}
	return &Result{Request: req, Warnings: warnings}, nil
}

func requiresPrice(t exchange.OrderType) bool {
	return t == exchange.OrderTypeLimit || t == exchange.OrderTypeStopLimit
}

func requiresStopPrice(t exchange.OrderType) bool {
	switch t {
	case exchange.OrderTypeStopLimit, exchange.OrderTypeStopMarket, exchange.OrderTypeTakeProfitMarket:
		return true
	}
	return false
}

func supportsTIF(t exchange.OrderType) bool {
	return t == exchange.OrderTypeLimit || t == exchange.OrderTypeStopLimit
}

// checkPrecision rejects values that do not sit on the instrument's step
// and tick grid. No silent rounding.
func checkPrecision(req exchange.OrderRequest, f *exchange.SymbolFilters) Violations {
	var violations Violations

	if f.StepSize.IsPositive() && !req.Quantity.Mod(f.StepSize).IsZero() {
		violations = append(violations, Violation{
			Field:     "quantity",
			Message:   fmt.Sprintf("%s does not conform to step size %s", req.Quantity, f.StepSize),
			Precision: true,
		})
	}
	if f.MinQty.IsPositive() && req.Quantity.LessThan(f.MinQty) {
		violations = append(violations, Violation{
			Field:   "quantity",
			Message: fmt.Sprintf("%s is below the minimum %s", req.Quantity, f.MinQty),
		})
	}

	if f.TickSize.IsPositive() {
		if req.Price.IsPositive() && !req.Price.Mod(f.TickSize).IsZero() {
			violations = append(violations, Violation{
				Field:     "price",
				Message:   fmt.Sprintf("%s does not conform to tick size %s", req.Price, f.TickSize),
				Precision: true,
			})
		}
		if req.StopPrice.IsPositive() && !req.StopPrice.Mod(f.TickSize).IsZero() {
			violations = append(violations, Violation{
				Field:     "stop_price",
				Message:   fmt.Sprintf("%s does not conform to tick size %s", req.StopPrice, f.TickSize),
				Precision: true,
			})
		}
	}

	return violations
}

// checkNotional verifies quantity x reference price against the minimum.
// The reference price is the limit price when present, the mark price
// otherwise.
func checkNotional(req exchange.OrderRequest, mctx MarketContext) Violations {
	minNotional := mctx.FallbackMinNotional
	if mctx.Filters != nil && mctx.Filters.MinNotional.IsPositive() {
		minNotional = mctx.Filters.MinNotional
	}
	if !minNotional.IsPositive() {
		return nil
	}

	reference := req.Price
	if !reference.IsPositive() {
		reference = mctx.MarkPrice
	}
	if !reference.IsPositive() {
		// No reference price available; nothing meaningful to check
		return nil
	}

	notional := req.Quantity.Mul(reference)
	if notional.LessThan(minNotional) {
		return Violations{{
			Field: "notional",
			Message: fmt.Sprintf("order notional %s (quantity %s x price %s) is below the exchange minimum %s",
				notional, req.Quantity, reference, minNotional),
		}}
	}
	return nil
}

// checkRelational enforces the trigger-direction rules: a stop order must
// trigger away from the current price in the direction that makes sense
// for its side. The stop-limit limit-vs-trigger ordering is a warning
// only.
func checkRelational(req exchange.OrderRequest, markPrice decimal.Decimal) (Violations, []Warning) {
	if !markPrice.IsPositive() {
		return nil, nil
	}

	var violations Violations
	var warnings []Warning

	switch req.Type {
	case exchange.OrderTypeStopLimit, exchange.OrderTypeStopMarket:
		// Stop entries trigger when the market moves against the resting
		// side: BUY stops above the market, SELL stops below.
		if req.Side == exchange.SideBuy && req.StopPrice.LessThanOrEqual(markPrice) {
			violations = append(violations, Violation{
				Field: "stop_price",
				Message: fmt.Sprintf("for BUY %s, stop price %s must be above the current price %s",
					req.Type, req.StopPrice, markPrice),
			})
		}
		if req.Side == exchange.SideSell && req.StopPrice.GreaterThanOrEqual(markPrice) {
			violations = append(violations, Violation{
				Field: "stop_price",
				Message: fmt.Sprintf("for SELL %s, stop price %s must be below the current price %s",
					req.Type, req.StopPrice, markPrice),
			})
		}

	case exchange.OrderTypeTakeProfitMarket:
		// Take-profits trigger in the favorable direction: SELL above the
		// market, BUY below.
		if req.Side == exchange.SideSell && req.StopPrice.LessThanOrEqual(markPrice) {
			violations = append(violations, Violation{
				Field: "stop_price",
				Message: fmt.Sprintf("for SELL take-profit, trigger price %s must be above the current price %s",
					req.StopPrice, markPrice),
			})
		}
		if req.Side == exchange.SideBuy && req.StopPrice.GreaterThanOrEqual(markPrice) {
			violations = append(violations, Violation{
				Field: "stop_price",
				Message: fmt.Sprintf("for BUY take-profit, trigger price %s must be below the current price %s",
					req.StopPrice, markPrice),
			})
		}
	}

	if req.Type == exchange.OrderTypeStopLimit {
		if req.Side == exchange.SideSell && req.Price.GreaterThan(req.StopPrice) {
			warnings = append(warnings, Warning{
				Field: "price",
				Message: fmt.Sprintf("SELL stop-limit with limit price %s above stop price %s may not fill once triggered",
					req.Price, req.StopPrice),
			})
		}
		if req.Side == exchange.SideBuy && req.Price.LessThan(req.StopPrice) {
			warnings = append(warnings, Warning{
				Field: "price",
				Message: fmt.Sprintf("BUY stop-limit with limit price %s below stop price %s may not fill once triggered",
					req.Price, req.StopPrice),
			})
		}
	}

	return violations, warnings
}
