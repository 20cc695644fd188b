package pricer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/pkg/retrier"
)

const (
	defaultAttemptTimeout = 10 * time.Second
	defaultRetryInterval  = 500 * time.Millisecond
	maxRetryInterval      = 5 * time.Second
)

// Retrying bounds every fetch attempt with a timeout and retries failed
// attempts with backoff. It stops early when the caller's context is done.
type Retrying struct {
	next    domain.MarketDataPort
	timeout time.Duration
	r       *retrier.Retrier
	l       *zap.Logger
}

// RetryingOption configures Retrying.
type RetryingOption func(*retryingConfig)

type retryingConfig struct {
	timeout  time.Duration
	retries  int
	interval time.Duration
}

// WithAttemptTimeout bounds each fetch attempt.
func WithAttemptTimeout(d time.Duration) RetryingOption {
	return func(c *retryingConfig) { c.timeout = d }
}

// WithRetries sets how many times a failed fetch is retried.
func WithRetries(n int) RetryingOption {
	return func(c *retryingConfig) { c.retries = n }
}

// WithRetryInterval sets the delay before the first retry.
func WithRetryInterval(d time.Duration) RetryingOption {
	return func(c *retryingConfig) { c.interval = d }
}

// NewRetrying wraps next.
func NewRetrying(next domain.MarketDataPort, logger *zap.Logger, opts ...RetryingOption) *Retrying {
	cfg := retryingConfig{timeout: defaultAttemptTimeout, retries: 2, interval: defaultRetryInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	l := loggerOrNop(logger)

	return &Retrying{
		next:    next,
		timeout: cfg.timeout,
		l:       l,
		r: retrier.New(
			retrier.WithMaxRetries(cfg.retries),
			retrier.WithInitialInterval(cfg.interval),
			retrier.WithMaxInterval(maxRetryInterval),
			retrier.WithRetryIf(func(err error) bool {
				return !errors.Is(err, context.Canceled)
			}),
			retrier.WithOnRetry(func(attempt int, err error) {
				l.Warn("retrying price fetch", zap.Int("attempt", attempt), zap.Error(err))
			}),
		),
	}
}

func (p *Retrying) FetchQuotes(ctx context.Context, assetIDs []string) ([]domain.PriceQuote, error) {
	quotes, err := retrier.DoWithData(p.r, ctx, func(ctx context.Context) ([]domain.PriceQuote, error) {
		attemptCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		return p.next.FetchQuotes(attemptCtx, assetIDs)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.RemoteError("fetch quotes", ctxErr)
		}
		if domain.KindOf(err) == domain.KindRemote {
			return nil, err
		}
		return nil, domain.RemoteError("fetch quotes", err)
	}
	return quotes, nil
}
