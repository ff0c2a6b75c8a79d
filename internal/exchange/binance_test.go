package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfunk/futctl/internal/config"
)

// newStubClient points a real BinanceClient at a local HTTP stub
func newStubClient(t *testing.T, handler http.HandlerFunc) *BinanceClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b := NewBinanceClient(config.ExchangeConfig{
		APIKey:       "test-key",
		SecretKey:    "test-secret",
		Testnet:      true,
		RecvWindowMS: 7000,
		TimeoutMS:    5000,
	}, zerolog.Nop())
	b.client.BaseURL = srv.URL
	return b
}

func TestBinancePlaceOrderRecvWindow(t *testing.T) {
	var query url.Values
	b := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"orderId": 12,
			"symbol": "BTCUSDT",
			"clientOrderId": "futctl-abc",
			"status": "FILLED",
			"origQty": "0.002",
			"executedQty": "0.002",
			"avgPrice": "88000"
		}`))
	})

	result, err := b.PlaceOrder(context.Background(), OrderRequest{
		Symbol:        "BTCUSDT",
		Side:          SideBuy,
		Type:          OrderTypeMarket,
		Quantity:      decimal.RequireFromString("0.002"),
		ClientOrderID: "futctl-abc",
	})
	require.NoError(t, err)

	// The configured freshness window rides on every signed request
	assert.Equal(t, "7000", query.Get("recvWindow"))
	assert.NotEmpty(t, query.Get("timestamp"))
	assert.NotEmpty(t, query.Get("signature"))

	assert.Equal(t, int64(12), result.OrderID)
	assert.Equal(t, OrderStatusFilled, result.Status)
	assert.True(t, result.AvgPrice.Equal(decimal.RequireFromString("88000")))
}

func TestBinancePositions(t *testing.T) {
	var query url.Values
	b := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"symbol": "BTCUSDT", "positionAmt": "0.002", "entryPrice": "85000",
			 "markPrice": "88000", "unRealizedProfit": "6", "liquidationPrice": "42000",
			 "leverage": "20"},
			{"symbol": "ETHUSDT", "positionAmt": "0", "entryPrice": "0",
			 "markPrice": "3000", "unRealizedProfit": "0", "liquidationPrice": "0",
			 "leverage": "20"},
			{"symbol": "SOLUSDT", "positionAmt": "-5", "entryPrice": "200",
			 "markPrice": "190", "unRealizedProfit": "50", "liquidationPrice": "400",
			 "leverage": "10"}
		]`))
	})

	positions, err := b.Positions(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "7000", query.Get("recvWindow"))

	// Flat entries are dropped
	require.Len(t, positions, 2)

	long := positions[0]
	assert.Equal(t, "BTCUSDT", long.Symbol)
	assert.Equal(t, SideBuy, long.Side())
	assert.True(t, long.Amount.Equal(decimal.RequireFromString("0.002")))
	assert.True(t, long.EntryPrice.Equal(decimal.RequireFromString("85000")))
	assert.Equal(t, 20, long.Leverage)

	short := positions[1]
	assert.Equal(t, "SOLUSDT", short.Symbol)
	assert.Equal(t, SideSell, short.Side())
	assert.True(t, short.Amount.Equal(decimal.RequireFromString("-5")))
}

func TestMockPositions(t *testing.T) {
	mock := NewMockClient()
	mock.SetPosition(Position{Symbol: "BTCUSDT", Amount: decimal.RequireFromString("0.002")})
	mock.SetPosition(Position{Symbol: "ETHUSDT", Amount: decimal.Zero})
	mock.SetPosition(Position{Symbol: "SOLUSDT", Amount: decimal.RequireFromString("-5")})

	t.Run("skips flat positions", func(t *testing.T) {
		positions, err := mock.Positions(context.Background(), "")
		require.NoError(t, err)
		assert.Len(t, positions, 2)
	})

	t.Run("filters by symbol", func(t *testing.T) {
		positions, err := mock.Positions(context.Background(), "SOLUSDT")
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, SideSell, positions[0].Side())
	})
}
