package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/setup"
)

const defaultConfigPath = "folio.yaml"

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Value the portfolio at current prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, closePortfolio, err := opts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closePortfolio()

			v, err := p.Valuation.Compute(cmd.Context())
			if err != nil {
				return err
			}
			renderValuation(cmd.OutOrStdout(), v, p.Config.DisplayCurrency)
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [ASSET]",
		Short: "Print a line for every new valuation until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, _, closePortfolio, err := opts.open(ctx, true)
			if err != nil {
				return err
			}
			defer closePortfolio()

			out := cmd.OutOrStdout()
			currency := p.Config.DisplayCurrency

			if len(args) == 1 {
				for u := range p.Valuation.WatchAsset(ctx, args[0]) {
					fmt.Fprintln(out, formatAssetUpdate(u, currency))
				}
				return nil
			}

			for u := range p.Valuation.Subscribe(ctx) {
				if u.Err != nil {
					fmt.Fprintf(out, "#%d error: %v\n", u.Seq, u.Err)
					continue
				}
				fmt.Fprintf(out, "#%d %s total %s cash %s holdings %s\n",
					u.Seq,
					u.Valuation.ComputedAt.Format("15:04:05"),
					u.Valuation.TotalValue.Format(currency),
					u.Valuation.Cash.Format(currency),
					u.Valuation.HoldingsValue.Format(currency))
			}
			return nil
		},
	}
}

func newLotsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lots",
		Short: "List held lots at cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, closePortfolio, err := opts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closePortfolio()

			lots, err := p.Ledger.Lots(cmd.Context())
			if err != nil {
				return err
			}
			renderLots(cmd.OutOrStdout(), lots, p.Config.DisplayCurrency)
			return nil
		},
	}
}

func newTradeCmd(opts *rootOptions, side string) *cobra.Command {
	return &cobra.Command{
		Use:   side + " ASSET QUANTITY",
		Short: fmt.Sprintf("%s QUANTITY of ASSET at the current market price", side),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, closePortfolio, err := opts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closePortfolio()

			outcome, err := p.Trader.Submit(cmd.Context(), domain.TradeRequest{
				Side:     domain.TradeSide(side),
				AssetID:  args[0],
				Quantity: args[1],
			})
			renderOutcome(cmd.OutOrStdout(), outcome, p.Config.DisplayCurrency)
			return err
		},
	}
}

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [AMOUNT]",
		Short: "Show the cash balance, or overwrite it with AMOUNT",
		Long: `Show the cash balance, or overwrite it with AMOUNT.
A malformed or negative AMOUNT leaves the balance unchanged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, closePortfolio, err := opts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closePortfolio()

			if len(args) == 1 {
				if err := p.Balance.AdjustCashBalance(cmd.Context(), args[0]); err != nil {
					return err
				}
			}

			cash, err := p.Balance.CashBalance(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cash %s\n", cash.Format(p.Config.DisplayCurrency))
			return nil
		},
	}
}

func newTradesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "List journaled trade requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, closePortfolio, err := opts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closePortfolio()

			renderTrades(cmd.OutOrStdout(), p.Journal.Trades(), p.Config.DisplayCurrency)
			return nil
		},
	}
}

func newSetupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Write a config file with an interactive wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = defaultConfigPath
			}
			if _, err := setup.RunTUI(path); err != nil {
				return errors.Wrap(err, "setup failed")
			}
			return nil
		},
	}
}
