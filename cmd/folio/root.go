package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "folio",
		Short: "Portfolio ledger valued at live market prices",
		Long: `Folio keeps a ledger of asset lots and a cash balance, values it at
market prices from Binance, Bybit, Hyperliquid or a static table, and
executes buy and sell requests against it.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (defaults and environment when empty)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "verbose development logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newLotsCmd(opts),
		newTradeCmd(opts, "buy"),
		newTradeCmd(opts, "sell"),
		newBalanceCmd(opts),
		newTradesCmd(opts),
		newSetupCmd(opts),
	)

	return cmd
}

// newLogger builds the process logger. Short-lived commands stay quiet unless --debug is set.
func (o *rootOptions) newLogger(quiet bool) (*zap.Logger, error) {
	switch {
	case o.debug:
		return zap.NewDevelopment()
	case quiet:
		return zap.NewNop(), nil
	default:
		return zap.NewProduction()
	}
}

// open loads the config and wires a portfolio. The caller must call the returned closer.
func (o *rootOptions) open(ctx context.Context, quiet bool) (*internal.Portfolio, *zap.Logger, func(), error) {
	conf, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to load config")
	}

	logger, err := o.newLogger(quiet)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to create logger")
	}

	p, err := internal.NewPortfolio(ctx, conf, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}

	return p, logger, func() {
		if err := p.Close(); err != nil {
			logger.Error("failed to close portfolio", zap.Error(err))
		}
		_ = logger.Sync()
	}, nil
}
