package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/quantfunk/futctl/internal/config"
	"github.com/quantfunk/futctl/internal/exchange"
	"github.com/quantfunk/futctl/internal/orders"
	"github.com/quantfunk/futctl/internal/strategy"
)

func marketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "market SYMBOL SIDE QUANTITY",
		Short: "Place a market order",
		Args:  cobra.ExactArgs(3),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			qty, err := parseDecimalArg("quantity", args[2])
			if err != nil {
				return err
			}
			result, err := s.submitter.Submit(ctx, orders.Market{
				Symbol:   args[0],
				Side:     side,
				Quantity: qty,
			})
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		}),
	}
}

func limitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limit SYMBOL SIDE QUANTITY PRICE [TIF]",
		Short: "Place a limit order",
		Args:  cobra.RangeArgs(4, 5),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			qty, err := parseDecimalArg("quantity", args[2])
			if err != nil {
				return err
			}
			price, err := parseDecimalArg("price", args[3])
			if err != nil {
				return err
			}
			tif := exchange.TimeInForceGTC
			if len(args) > 4 {
				tif = exchange.TimeInForce(strings.ToUpper(args[4]))
			}
			result, err := s.submitter.Submit(ctx, orders.Limit{
				Symbol:      args[0],
				Side:        side,
				Quantity:    qty,
				Price:       price,
				TimeInForce: tif,
			})
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		}),
	}
}

func stopLimitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-limit SYMBOL SIDE QUANTITY STOP_PRICE LIMIT_PRICE [TIF]",
		Short: "Place a stop-limit order (limit order at LIMIT_PRICE once STOP_PRICE trades)",
		Args:  cobra.RangeArgs(5, 6),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			qty, err := parseDecimalArg("quantity", args[2])
			if err != nil {
				return err
			}
			stopPrice, err := parseDecimalArg("stop price", args[3])
			if err != nil {
				return err
			}
			limitPrice, err := parseDecimalArg("limit price", args[4])
			if err != nil {
				return err
			}
			tif := exchange.TimeInForceGTC
			if len(args) > 5 {
				tif = exchange.TimeInForce(strings.ToUpper(args[5]))
			}
			result, err := s.submitter.Submit(ctx, orders.StopLimit{
				Symbol:      args[0],
				Side:        side,
				Quantity:    qty,
				StopPrice:   stopPrice,
				Price:       limitPrice,
				TimeInForce: tif,
			})
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		}),
	}
}

func stopMarketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-market SYMBOL SIDE QUANTITY STOP_PRICE",
		Short: "Place a stop-market order",
		Args:  cobra.ExactArgs(4),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			qty, err := parseDecimalArg("quantity", args[2])
			if err != nil {
				return err
			}
			stopPrice, err := parseDecimalArg("stop price", args[3])
			if err != nil {
				return err
			}
			result, err := s.submitter.Submit(ctx, orders.StopMarket{
				Symbol:    args[0],
				Side:      side,
				Quantity:  qty,
				StopPrice: stopPrice,
			})
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		}),
	}
}

func takeProfitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "take-profit SYMBOL SIDE QUANTITY TRIGGER_PRICE",
		Short: "Place a take-profit-market order",
		Args:  cobra.ExactArgs(4),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			qty, err := parseDecimalArg("quantity", args[2])
			if err != nil {
				return err
			}
			trigger, err := parseDecimalArg("trigger price", args[3])
			if err != nil {
				return err
			}
			result, err := s.submitter.Submit(ctx, orders.TakeProfitMarket{
				Symbol:    args[0],
				Side:      side,
				Quantity:  qty,
				StopPrice: trigger,
			})
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		}),
	}
}

func ocoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "oco SYMBOL SIDE QUANTITY TAKE_PROFIT_PRICE STOP_PRICE",
		Short: "Place an OCO pair: take-profit and stop legs for an open position",
		Long: `Places a take-profit-market and a stop-market order for the same
quantity. The exchange does not link the legs: when one fills, cancel the
other with "futctl cancel". If the second leg fails the first is left
resting and its order id is reported for manual cancellation.`,
		Args: cobra.ExactArgs(5),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			qty, err := parseDecimalArg("quantity", args[2])
			if err != nil {
				return err
			}
			takeProfit, err := parseDecimalArg("take-profit price", args[3])
			if err != nil {
				return err
			}
			stop, err := parseDecimalArg("stop price", args[4])
			if err != nil {
				return err
			}

			oco := strategy.NewOCO(s.submitter, s.auditLog, config.NewLogger("oco"))
			plan, err := oco.Execute(ctx, strategy.OcoParams{
				Symbol:          args[0],
				Side:            side,
				Quantity:        qty,
				TakeProfitPrice: takeProfit,
				StopPrice:       stop,
			})
			if plan != nil && plan.State == strategy.OcoStatePartialFailure {
				fmt.Printf("OCO PARTIAL FAILURE\n")
				fmt.Printf("  Orphaned take-profit order %d is resting UNPROTECTED\n", plan.OrphanOrderID)
				fmt.Printf("  Cancel it manually: futctl cancel %s %d\n", plan.Params.Symbol, plan.OrphanOrderID)
			}
			if err != nil {
				return err
			}
			fmt.Printf("OCO pair placed\n")
			fmt.Printf("  Take-profit order: %d @ trigger %s\n", plan.TakeProfitLeg.OrderID, plan.Params.TakeProfitPrice)
			fmt.Printf("  Stop order:        %d @ trigger %s\n", plan.StopLeg.OrderID, plan.Params.StopPrice)
			return nil
		}),
	}
}

func twapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "twap SYMBOL SIDE TOTAL_QUANTITY SLICE_COUNT INTERVAL_SECONDS",
		Short: "Execute a TWAP schedule of market-order slices",
		Args:  cobra.ExactArgs(5),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			total, err := parseDecimalArg("total quantity", args[2])
			if err != nil {
				return err
			}
			slices, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid slice count %q", args[3])
			}
			intervalSec, err := strconv.Atoi(args[4])
			if err != nil {
				return fmt.Errorf("invalid interval %q", args[4])
			}

			twap := strategy.NewTWAP(s.submitter, s.auditLog, config.NewLogger("twap"),
				strategy.WithTwapBounds(
					s.cfg.Trading.MinTwapSlices,
					s.cfg.Trading.MaxTwapSlices,
					time.Duration(s.cfg.Trading.MinTwapInterval)*time.Second,
				))
			report, err := twap.Execute(ctx, strategy.TwapParams{
				Symbol:        args[0],
				Side:          side,
				TotalQuantity: total,
				SliceCount:    slices,
				Interval:      time.Duration(intervalSec) * time.Second,
			})
			if report != nil {
				printTwapReport(report)
			}
			return err
		}),
	}
}

func gridCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grid SYMBOL LOWER_PRICE UPPER_PRICE LEVEL_COUNT QUANTITY_PER_LEVEL",
		Short: "Place a grid of resting limit orders across a price range",
		Args:  cobra.ExactArgs(5),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			lower, err := parseDecimalArg("lower price", args[1])
			if err != nil {
				return err
			}
			upper, err := parseDecimalArg("upper price", args[2])
			if err != nil {
				return err
			}
			levels, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid level count %q", args[3])
			}
			qty, err := parseDecimalArg("quantity per level", args[4])
			if err != nil {
				return err
			}

			grid := strategy.NewGrid(s.submitter, s.auditLog, config.NewLogger("grid"),
				strategy.WithGridBounds(s.cfg.Trading.MinGridLevels, s.cfg.Trading.MaxGridLevels))
			plan, err := grid.Execute(ctx, strategy.GridParams{
				Symbol:           args[0],
				LowerBound:       lower,
				UpperBound:       upper,
				LevelCount:       levels,
				QuantityPerLevel: qty,
			})
			if plan != nil {
				printGridPlan(plan)
			}
			return err
		}),
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel SYMBOL ORDER_ID",
		Short: "Cancel a resting order",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			orderID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[1])
			}
			result, err := s.submitter.Cancel(ctx, strings.ToUpper(args[0]), orderID)
			if err != nil {
				return err
			}
			fmt.Printf("Order %d cancelled (%s)\n", result.OrderID, result.Symbol)
			return nil
		}),
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status SYMBOL ORDER_ID",
		Short: "Query the current state of an order",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			orderID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[1])
			}
			result, err := s.submitter.Status(ctx, strings.ToUpper(args[0]), orderID)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		}),
	}
}

func openOrdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders [SYMBOL]",
		Short: "List resting orders",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			symbol := ""
			if len(args) > 0 {
				symbol = strings.ToUpper(args[0])
			}
			open, err := s.client.OpenOrders(ctx, symbol)
			if err != nil {
				return err
			}
			if len(open) == 0 {
				fmt.Println("No open orders")
				return nil
			}
			for _, o := range open {
				fmt.Printf("%-12d %-10s %-4s %-18s qty=%s price=%s stop=%s status=%s\n",
					o.OrderID, o.Symbol, o.Side, o.Type, o.RequestedQty, o.Price, o.StopPrice, o.Status)
			}
			return nil
		}),
	}
}

func positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions [SYMBOL]",
		Short: "List open positions",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			symbol := ""
			if len(args) > 0 {
				symbol = strings.ToUpper(args[0])
			}
			positions, err := s.client.Positions(ctx, symbol)
			if err != nil {
				return err
			}
			if len(positions) == 0 {
				fmt.Println("No open positions")
				return nil
			}
			for _, p := range positions {
				fmt.Printf("%-10s %-5s amount=%s entry=%s mark=%s pnl=%s liq=%s leverage=%dx\n",
					p.Symbol, p.Side(), p.Amount.Abs(), p.EntryPrice, p.MarkPrice,
					p.UnrealizedPnL, p.LiquidationPrice, p.Leverage)
			}
			return nil
		}),
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the futures wallet balance",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			acct, err := s.client.Account(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Total balance:     %s USDT\n", acct.TotalBalance)
			fmt.Printf("Available balance: %s USDT\n", acct.AvailableBalance)
			fmt.Printf("Unrealized PnL:    %s USDT\n", acct.UnrealizedPnL)
			return nil
		}),
	}
}

func priceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price SYMBOL",
		Short: "Show the current mark price",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			symbol := strings.ToUpper(args[0])
			var mark decimal.Decimal
			err := exchange.Retry(ctx, exchange.DefaultRetryConfig(), func() error {
				var lookupErr error
				mark, lookupErr = s.client.MarkPrice(ctx, symbol)
				return lookupErr
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s mark price: %s\n", symbol, mark)
			return nil
		}),
	}
}

func leverageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leverage SYMBOL MULTIPLIER",
		Short: "Set the leverage multiplier for a symbol",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			leverage, err := strconv.Atoi(args[1])
			if err != nil || leverage < 1 || leverage > 125 {
				return fmt.Errorf("leverage must be an integer between 1 and 125, got %q", args[1])
			}
			return s.client.SetLeverage(ctx, strings.ToUpper(args[0]), leverage)
		}),
	}
}

// Argument helpers

func parseSide(arg string) (exchange.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "BUY":
		return exchange.SideBuy, nil
	case "SELL":
		return exchange.SideSell, nil
	}
	return "", fmt.Errorf("side must be BUY or SELL, got %q", arg)
}

func parseDecimalArg(name, arg string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(arg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: must be a number", name, arg)
	}
	return d, nil
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func printResult(r *exchange.OrderResult) {
	fmt.Printf("Order ID:  %d\n", r.OrderID)
	fmt.Printf("Symbol:    %s\n", r.Symbol)
	fmt.Printf("Side:      %s\n", r.Side)
	fmt.Printf("Type:      %s\n", r.Type)
	fmt.Printf("Status:    %s\n", r.Status)
	fmt.Printf("Quantity:  %s (executed %s)\n", r.RequestedQty, r.ExecutedQty)
	if r.AvgPrice.IsPositive() {
		fmt.Printf("Avg price: %s\n", r.AvgPrice)
	}
	if r.Price.IsPositive() {
		fmt.Printf("Price:     %s\n", r.Price)
	}
	if r.StopPrice.IsPositive() {
		fmt.Printf("Stop:      %s\n", r.StopPrice)
	}
}

func printTwapReport(r *strategy.TwapReport) {
	fmt.Printf("TWAP execution: %s %s %s in %d slices\n",
		r.Params.Side, r.Params.TotalQuantity, r.Params.Symbol, r.Params.SliceCount)
	for _, s := range r.Slices {
		if s.Err != nil {
			fmt.Printf("  [%d/%d] FAILED qty=%s: %v\n", s.Index, len(r.Slices), s.Quantity, s.Err)
		} else {
			fmt.Printf("  [%d/%d] filled qty=%s avg=%s (order %d)\n",
				s.Index, len(r.Slices), s.Result.ExecutedQty, s.Result.AvgPrice, s.Result.OrderID)
		}
	}
	fmt.Printf("Executed %s of %s requested\n", r.ExecutedQty, r.RequestedQty)
	if r.AvgPrice.IsPositive() {
		fmt.Printf("Average execution price: %s\n", r.AvgPrice)
	}
}

func printGridPlan(p *strategy.GridPlan) {
	fmt.Printf("Grid on %s: %d levels between %s and %s (mark %s)\n",
		p.Params.Symbol, p.Params.LevelCount, p.Params.LowerBound, p.Params.UpperBound, p.MarkPrice)
	for _, l := range p.Levels {
		switch {
		case l.Skipped:
			fmt.Printf("  [%2d] %-10s skipped (at mark price)\n", l.Index, l.Price)
		case l.Err != nil:
			fmt.Printf("  [%2d] %-10s %-4s FAILED: %v\n", l.Index, l.Price, l.Side, l.Err)
		default:
			fmt.Printf("  [%2d] %-10s %-4s order %d\n", l.Index, l.Price, l.Side, l.Result.OrderID)
		}
	}
	fmt.Printf("Active levels: %d / %d\n", len(p.ActiveLevels()), len(p.Levels))
}
