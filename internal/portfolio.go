package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/clients"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/balance"
	"github.com/vadiminshakov/folio/internal/services/pricer"
	"github.com/vadiminshakov/folio/internal/services/trader"
	"github.com/vadiminshakov/folio/internal/services/valuation"
	"github.com/vadiminshakov/folio/internal/storage/journal"
	"github.com/vadiminshakov/folio/internal/storage/ledger"
	"github.com/vadiminshakov/folio/internal/storage/valuations"
	"github.com/vadiminshakov/folio/internal/web"
)

const (
	ledgerDir    = "ledger"
	journalDir   = "journal"
	valuationDir = "valuations"
)

// Portfolio wires the ledger, market data and services of one folio instance.
type Portfolio struct {
	Config    config.Config
	Ledger    *ledger.Store
	Valuation *valuation.Engine
	Trader    *trader.Executor
	Balance   *balance.Service
	Journal   *journal.Store
	Snapshots *valuations.WALStore

	l *zap.Logger
}

// NewPortfolio opens storage and builds the market data port for conf.Platform.
func NewPortfolio(ctx context.Context, conf config.Config, logger *zap.Logger) (*Portfolio, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	port, err := newMarketData(conf, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create market data source")
	}
	return newPortfolio(ctx, conf, port, logger)
}

func newPortfolio(ctx context.Context, conf config.Config, port domain.MarketDataPort, logger *zap.Logger) (*Portfolio, error) {
	p := &Portfolio{Config: conf, l: logger}

	seed := conf.SeedBalance
	var err error
	p.Ledger, err = ledger.Open(ctx, ledger.Options{
		Backend:     conf.Storage,
		Dir:         filepath.Join(conf.StateDir, ledgerDir),
		SeedBalance: &seed,
		Logger:      logger.Named("ledger"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger")
	}

	if conf.Storage == config.StorageMemory {
		p.Journal = journal.NewInMemory()
		p.Snapshots = valuations.NewInMemory(valuations.DefaultRetained)
	} else {
		if p.Journal, err = journal.Open(filepath.Join(conf.StateDir, journalDir)); err != nil {
			_ = p.Close()
			return nil, errors.Wrap(err, "failed to open trade journal")
		}
		if p.Snapshots, err = valuations.NewWALStore(filepath.Join(conf.StateDir, valuationDir)); err != nil {
			_ = p.Close()
			return nil, errors.Wrap(err, "failed to open valuation snapshots")
		}
	}

	bounds := trader.Bounds{MinLot: conf.MinLot, MaxLot: conf.MaxLot}
	if p.Trader, err = trader.NewExecutor(p.Ledger, port, bounds, p.Journal, logger.Named("trader")); err != nil {
		_ = p.Close()
		return nil, errors.Wrap(err, "failed to create trade executor")
	}

	p.Valuation = valuation.NewEngine(p.Ledger, port, logger.Named("valuation"))
	p.Balance = balance.NewService(p.Ledger, logger.Named("balance"))

	return p, nil
}

// newMarketData builds the price source of conf.Platform. Exchange sources
// are wrapped with per-attempt timeouts and retries.
func newMarketData(conf config.Config, logger *zap.Logger) (domain.MarketDataPort, error) {
	var port domain.MarketDataPort
	creds := conf.Credentials
	l := logger.Named("pricer").With(zap.String("platform", conf.Platform))

	switch conf.Platform {
	case config.PlatformStatic:
		return pricer.NewStaticQuoter(conf.StaticPrices), nil
	case config.PlatformSimulate:
		port = pricer.NewBinanceQuoter(clients.NewPublicBinanceClient(), conf.QuoteCurrency, l)
	case config.PlatformBinance:
		port = pricer.NewBinanceQuoter(clients.NewBinanceClient(creds.BinanceAPIKey, creds.BinanceAPISecret), conf.QuoteCurrency, l)
	case config.PlatformBybit:
		port = pricer.NewBybitQuoter(clients.NewBybitClient(creds.BybitAPIKey, creds.BybitAPISecret), conf.QuoteCurrency, conf.PriceWorkers, l)
	case config.PlatformHyperliquid:
		client, err := clients.NewHyperliquidClient(creds.HyperliquidPrivateKey, conf.HyperliquidURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create hyperliquid client")
		}
		port = pricer.NewHyperliquidQuoter(client.Info(), l)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", conf.Platform)
	}

	return pricer.NewRetrying(port, l,
		pricer.WithAttemptTimeout(conf.PriceTimeout),
		pricer.WithRetries(conf.PriceRetries),
	), nil
}

// WebDeps exposes the services to the HTTP server.
func (p *Portfolio) WebDeps() web.Deps {
	return web.Deps{
		Valuation: p.Valuation,
		Lots:      p.Ledger,
		Balance:   p.Balance,
		Trades:    p.Trader,
		Journal:   p.Journal,
		Snapshots: p.Snapshots,
	}
}

// Run stores the seed balance if needed, then records a valuation snapshot
// for every valuation the engine emits and revalues at RefreshInterval. It
// returns when ctx is done.
func (p *Portfolio) Run(ctx context.Context) error {
	if err := p.Balance.Initialize(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize cash balance")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.record(ctx)
		return nil
	})
	if interval := p.Config.RefreshInterval; interval > 0 {
		g.Go(func() error {
			p.refreshEvery(ctx, interval)
			return nil
		})
	}

	p.l.Info("portfolio running",
		zap.String("platform", p.Config.Platform),
		zap.String("storage", p.Config.Storage),
		zap.Duration("refresh_interval", p.Config.RefreshInterval))

	return g.Wait()
}

func (p *Portfolio) record(ctx context.Context) {
	for u := range p.Valuation.Subscribe(ctx) {
		if u.Err != nil {
			p.l.Warn("valuation failed", zap.Uint64("seq", u.Seq), zap.Error(u.Err))
			continue
		}

		index, err := p.Snapshots.Save(domain.NewValuationSnapshot(u.Valuation))
		if err != nil {
			p.l.Error("failed to save valuation snapshot", zap.Error(err))
			continue
		}
		p.l.Debug("valuation recorded",
			zap.Uint64("index", index),
			zap.String("total", u.Valuation.TotalValue.String()))
	}
}

func (p *Portfolio) refreshEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Valuation.Refresh()
		}
	}
}

// Close stops valuation streams and closes storage. The first error is returned.
func (p *Portfolio) Close() error {
	if p.Valuation != nil {
		p.Valuation.Close()
	}

	var first error
	keep := func(name string, err error) {
		if err == nil {
			return
		}
		p.l.Error("close failed", zap.String("component", name), zap.Error(err))
		if first == nil {
			first = err
		}
	}
	if p.Ledger != nil {
		keep("ledger", p.Ledger.Close())
	}
	if p.Journal != nil {
		keep("journal", p.Journal.Close())
	}
	if p.Snapshots != nil {
		keep("valuations", p.Snapshots.Close())
	}
	return first
}
