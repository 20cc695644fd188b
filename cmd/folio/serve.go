package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/folio/internal/web"
)

const certCacheDir = "cert-cache"

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and record valuation snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, logger, closePortfolio, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer closePortfolio()

			server := web.NewServer(p.Config.WebAddr, p.WebDeps(), logger.Named("web"))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return p.Run(ctx) })
			g.Go(func() error {
				if len(p.Config.TLSDomains) > 0 {
					return server.StartWithAutoTLS(ctx, p.Config.TLSDomains, filepath.Join(p.Config.StateDir, certCacheDir))
				}
				return server.Start(ctx)
			})

			err = g.Wait()
			logger.Info("folio stopped", zap.Error(err))
			return err
		},
	}
}
