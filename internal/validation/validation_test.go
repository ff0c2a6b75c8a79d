package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfunk/futctl/internal/exchange"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func btcFilters() *exchange.SymbolFilters {
	return &exchange.SymbolFilters{
		Symbol:      "BTCUSDT",
		StepSize:    dec("0.001"),
		TickSize:    dec("0.1"),
		MinQty:      dec("0.001"),
		MinNotional: dec("100"),
	}
}

func TestCheckBasics(t *testing.T) {
	t.Run("normalizes symbol and defaults TIF", func(t *testing.T) {
		req, violations := CheckBasics(exchange.OrderRequest{
			Symbol:   " btcusdt ",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeLimit,
			Quantity: dec("0.01"),
			Price:    dec("85000"),
		})
		require.Empty(t, violations)
		assert.Equal(t, "BTCUSDT", req.Symbol)
		assert.Equal(t, exchange.TimeInForceGTC, req.TimeInForce)
	})

	t.Run("strips TIF from market orders", func(t *testing.T) {
		req, violations := CheckBasics(exchange.OrderRequest{
			Symbol:      "BTCUSDT",
			Side:        exchange.SideSell,
			Type:        exchange.OrderTypeMarket,
			Quantity:    dec("0.01"),
			TimeInForce: exchange.TimeInForceGTC,
		})
		require.Empty(t, violations)
		assert.Empty(t, req.TimeInForce)
	})

	t.Run("rejects malformed symbol", func(t *testing.T) {
		_, violations := CheckBasics(exchange.OrderRequest{
			Symbol:   "btc-usd",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeMarket,
			Quantity: dec("0.01"),
		})
		require.Len(t, violations, 1)
		assert.Equal(t, "symbol", violations[0].Field)
	})

	t.Run("accumulates every violation", func(t *testing.T) {
		_, violations := CheckBasics(exchange.OrderRequest{
			Symbol:   "",
			Side:     "HOLD",
			Type:     "TRAILING",
			Quantity: dec("-1"),
		})
		fields := make([]string, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, v.Field)
		}
		assert.Contains(t, fields, "symbol")
		assert.Contains(t, fields, "side")
		assert.Contains(t, fields, "type")
		assert.Contains(t, fields, "quantity")
	})

	t.Run("limit requires a price", func(t *testing.T) {
		_, violations := CheckBasics(exchange.OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeLimit,
			Quantity: dec("0.01"),
		})
		require.Len(t, violations, 1)
		assert.Equal(t, "price", violations[0].Field)
	})

	t.Run("market rejects a stray price", func(t *testing.T) {
		_, violations := CheckBasics(exchange.OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeMarket,
			Quantity: dec("0.01"),
			Price:    dec("85000"),
		})
		require.Len(t, violations, 1)
		assert.Equal(t, "price", violations[0].Field)
	})

	t.Run("stop kinds require a trigger", func(t *testing.T) {
		for _, kind := range []exchange.OrderType{
			exchange.OrderTypeStopLimit,
			exchange.OrderTypeStopMarket,
			exchange.OrderTypeTakeProfitMarket,
		} {
			_, violations := CheckBasics(exchange.OrderRequest{
				Symbol:   "BTCUSDT",
				Side:     exchange.SideSell,
				Type:     kind,
				Quantity: dec("0.01"),
				Price:    dec("85000"),
			})
			fields := make([]string, 0, len(violations))
			for _, v := range violations {
				fields = append(fields, v.Field)
			}
			assert.Contains(t, fields, "stop_price", "kind %s", kind)
		}
	})

	t.Run("rejects unknown TIF", func(t *testing.T) {
		_, violations := CheckBasics(exchange.OrderRequest{
			Symbol:      "BTCUSDT",
			Side:        exchange.SideBuy,
			Type:        exchange.OrderTypeLimit,
			Quantity:    dec("0.01"),
			Price:       dec("85000"),
			TimeInForce: "GTD",
		})
		require.Len(t, violations, 1)
		assert.Equal(t, "time_in_force", violations[0].Field)
	})
}

func TestCheck(t *testing.T) {
	mctx := MarketContext{
		Filters:             btcFilters(),
		MarkPrice:           dec("88000"),
		FallbackMinNotional: dec("100"),
	}

	t.Run("valid market order passes", func(t *testing.T) {
		result, err := Check(exchange.OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeMarket,
			Quantity: dec("0.002"),
		}, mctx)
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)
	})

	t.Run("notional violation cites the computed notional and the minimum", func(t *testing.T) {
		loose := mctx
		loose.Filters = &exchange.SymbolFilters{
			Symbol:      "BTCUSDT",
			StepSize:    dec("0.0001"),
			TickSize:    dec("0.1"),
			MinNotional: dec("100"),
		}
		_, err := Check(exchange.OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeMarket,
			Quantity: dec("0.0001"),
		}, loose)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "8.8"))
		assert.True(t, strings.Contains(err.Error(), "100"))
	})

	t.Run("off-step quantity is a precision violation, never rounded", func(t *testing.T) {
		_, err := Check(exchange.OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeMarket,
			Quantity: dec("0.0015"),
		}, mctx)
		require.Error(t, err)
		var violations Violations
		require.ErrorAs(t, err, &violations)
		require.Len(t, violations, 1)
		assert.True(t, violations[0].Precision)
		assert.Equal(t, "quantity", violations[0].Field)
	})

	t.Run("off-tick limit price is rejected", func(t *testing.T) {
		_, err := Check(exchange.OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeLimit,
			Quantity: dec("0.002"),
			Price:    dec("85000.05"),
		}, mctx)
		require.Error(t, err)
		var violations Violations
		require.ErrorAs(t, err, &violations)
		assert.True(t, violations[0].Precision)
	})

	t.Run("BUY stop must trigger above the market", func(t *testing.T) {
		_, err := Check(exchange.OrderRequest{
			Symbol:    "BTCUSDT",
			Side:      exchange.SideBuy,
			Type:      exchange.OrderTypeStopMarket,
			Quantity:  dec("0.002"),
			StopPrice: dec("87000"),
		}, mctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be above")
	})

	t.Run("SELL stop must trigger below the market", func(t *testing.T) {
		_, err := Check(exchange.OrderRequest{
			Symbol:    "BTCUSDT",
			Side:      exchange.SideSell,
			Type:      exchange.OrderTypeStopMarket,
			Quantity:  dec("0.002"),
			StopPrice: dec("89000"),
		}, mctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be below")
	})

	t.Run("SELL take-profit triggers above the market", func(t *testing.T) {
		result, err := Check(exchange.OrderRequest{
			Symbol:    "BTCUSDT",
			Side:      exchange.SideSell,
			Type:      exchange.OrderTypeTakeProfitMarket,
			Quantity:  dec("0.002"),
			StopPrice: dec("90000"),
		}, mctx)
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)
	})

	t.Run("BUY take-profit below the market is valid", func(t *testing.T) {
		_, err := Check(exchange.OrderRequest{
			Symbol:    "BTCUSDT",
			Side:      exchange.SideBuy,
			Type:      exchange.OrderTypeTakeProfitMarket,
			Quantity:  dec("0.002"),
			StopPrice: dec("86000"),
		}, mctx)
		require.NoError(t, err)
	})

	t.Run("stop-limit with inverted limit price warns but passes", func(t *testing.T) {
		result, err := Check(exchange.OrderRequest{
			Symbol:    "BTCUSDT",
			Side:      exchange.SideSell,
			Type:      exchange.OrderTypeStopLimit,
			Quantity:  dec("0.002"),
			StopPrice: dec("86000"),
			Price:     dec("86500"),
		}, mctx)
		require.NoError(t, err)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "price", result.Warnings[0].Field)
	})

	t.Run("fallback minimum applies without an exchange filter", func(t *testing.T) {
		bare := MarketContext{MarkPrice: dec("88000"), FallbackMinNotional: dec("100")}
		_, err := Check(exchange.OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeMarket,
			Quantity: dec("0.0001"),
		}, bare)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notional")
	})

	t.Run("idempotent, a request passing once passes again", func(t *testing.T) {
		req := exchange.OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Type:     exchange.OrderTypeLimit,
			Quantity: dec("0.002"),
			Price:    dec("85000"),
		}
		first, err := Check(req, mctx)
		require.NoError(t, err)
		second, err := Check(first.Request, mctx)
		require.NoError(t, err)
		assert.Equal(t, first.Request, second.Request)
	})
}

func TestViolationsError(t *testing.T) {
	t.Run("empty list is not an error", func(t *testing.T) {
		var v Violations
		assert.NoError(t, v.AsError())
	})

	t.Run("joins multiple violations", func(t *testing.T) {
		v := Violations{
			{Field: "symbol", Message: "cannot be empty"},
			{Field: "quantity", Message: "must be positive, got 0"},
		}
		msg := v.Error()
		assert.Contains(t, msg, "symbol")
		assert.Contains(t, msg, "quantity")
	})
}
