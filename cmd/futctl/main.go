// futctl - submit and manage orders on Binance USDT-M futures
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quantfunk/futctl/internal/audit"
	"github.com/quantfunk/futctl/internal/config"
	"github.com/quantfunk/futctl/internal/exchange"
	"github.com/quantfunk/futctl/internal/orders"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "futctl",
		Short: "Binance USDT-M futures order client",
		Long: `futctl submits and manages orders against Binance USDT-M futures
(testnet by default). It supports market, limit, stop-limit, stop-market
and take-profit orders plus OCO pairs, TWAP slicing and grid ladders.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (optional)")

	rootCmd.AddCommand(
		marketCmd(),
		limitCmd(),
		stopLimitCmd(),
		stopMarketCmd(),
		takeProfitCmd(),
		ocoCmd(),
		twapCmd(),
		gridCmd(),
		cancelCmd(),
		statusCmd(),
		openOrdersCmd(),
		positionsCmd(),
		balanceCmd(),
		priceCmd(),
		leverageCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session wires one command invocation: config, logging, audit stream,
// authenticated client with a synced clock, and the submitter.
type session struct {
	cfg       *config.Config
	client    exchange.Client
	submitter *orders.Submitter
	auditLog  *audit.Logger
	log       zerolog.Logger
}

// newSession builds the session and refuses to proceed unless the
// exchange is reachable and the clock is synced: signed requests with an
// unsynced clock bounce off the recvWindow check anyway.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log := config.NewLogger("futctl")

	auditLog, err := audit.NewLogger(cfg.Audit.File, cfg.Audit.Enabled)
	if err != nil {
		return nil, err
	}

	client := exchange.NewBinanceClient(cfg.Exchange, config.NewLogger("exchange"))

	// Read-only probes may retry through transient failures; order
	// placement never does.
	retryCfg := exchange.DefaultRetryConfig()
	if err := exchange.Retry(ctx, retryCfg, func() error { return client.Ping(ctx) }); err != nil {
		auditLog.Close()
		return nil, fmt.Errorf("exchange unreachable, aborting session: %w", err)
	}

	offset, err := client.SyncClock(ctx)
	if err != nil {
		auditLog.Close()
		return nil, fmt.Errorf("clock synchronization failed, aborting session: %w", err)
	}

	auditLog.Log(&audit.Event{
		EventType: audit.EventTypeSessionStarted,
		Success:   true,
		Detail: map[string]interface{}{
			"testnet":         cfg.Exchange.Testnet,
			"clock_offset_ms": offset.Milliseconds(),
		},
	})

	if acct, err := client.Account(ctx); err == nil {
		log.Info().
			Str("total_balance", acct.TotalBalance.String()).
			Str("available_balance", acct.AvailableBalance.String()).
			Msg("Account balance")
	} else {
		log.Warn().Err(err).Msg("Could not fetch account balance")
	}

	submitter := orders.NewSubmitter(
		client,
		auditLog,
		config.NewLogger("orders"),
		orders.WithFallbackMinNotional(decimalFromFloat(cfg.Trading.MinNotional)),
		orders.WithFillPollDelay(cfg.Trading.FillPollDelay()),
	)

	return &session{
		cfg:       cfg,
		client:    client,
		submitter: submitter,
		auditLog:  auditLog,
		log:       log,
	}, nil
}

func (s *session) close() {
	if err := s.auditLog.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close audit log")
	}
}

// withSession wraps a command body with session setup and teardown
func withSession(run func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		return run(ctx, s, args)
	}
}
