package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Client defines the exchange boundary. BinanceClient talks to the live
// venue; MockClient backs the tests. This layer never retries: retry
// policy belongs to callers so behavior stays predictable.
type Client interface {
	// PlaceOrder submits a signed order and returns the normalized result
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)

	// CancelOrder cancels a resting order
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*OrderResult, error)

	// GetOrder queries the current state of an order
	GetOrder(ctx context.Context, symbol string, orderID int64) (*OrderResult, error)

	// OpenOrders lists resting orders, optionally scoped to one symbol
	OpenOrders(ctx context.Context, symbol string) ([]OrderResult, error)

	// MarkPrice returns the current mark price for a symbol
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// SymbolFilters returns the instrument's trading rules
	SymbolFilters(ctx context.Context, symbol string) (*SymbolFilters, error)

	// ServerTime returns the exchange clock in unix milliseconds
	ServerTime(ctx context.Context) (int64, error)

	// SyncClock recomputes the local-to-exchange clock offset and applies
	// it to all subsequent signed requests
	SyncClock(ctx context.Context) (time.Duration, error)

	// ClockOffset returns the currently applied offset
	ClockOffset() time.Duration

	// Ping checks connectivity
	Ping(ctx context.Context) error

	// Account returns a wallet balance snapshot
	Account(ctx context.Context) (*Account, error)

	// Positions lists open positions, optionally scoped to one symbol
	Positions(ctx context.Context, symbol string) ([]Position, error)

	// SetLeverage changes the leverage multiplier for a symbol
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
