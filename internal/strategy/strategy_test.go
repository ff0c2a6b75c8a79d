package strategy

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfunk/futctl/internal/audit"
	"github.com/quantfunk/futctl/internal/exchange"
	"github.com/quantfunk/futctl/internal/orders"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestMock() *exchange.MockClient {
	mock := exchange.NewMockClient()
	mock.SetMarkPrice("BTCUSDT", dec("88000"))
	mock.SetFilters(&exchange.SymbolFilters{
		Symbol:      "BTCUSDT",
		StepSize:    dec("0.001"),
		TickSize:    dec("0.1"),
		MinQty:      dec("0.001"),
		MinNotional: dec("100"),
	})
	return mock
}

func newTestSubmitter(t *testing.T, client exchange.Client) *orders.Submitter {
	t.Helper()
	return orders.NewSubmitter(client, noopAudit(t), zerolog.Nop())
}

func noopAudit(t *testing.T) *audit.Logger {
	t.Helper()
	auditLog, err := audit.NewLogger("", false)
	require.NoError(t, err)
	return auditLog
}
