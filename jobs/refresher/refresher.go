// Package refresher polls RPC for the accounts a quoter depends on.
package refresher

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"gigadex/domain/account"
	"gigadex/infra/metrics"
)

type Fetcher interface {
	Fetch(ctx context.Context, keys []solana.PublicKey) ([]account.Update, error)
}

type Target interface {
	AccountsToUpdate() []solana.PublicKey
	Apply(source string, updates ...account.Update) (int, error)
}

const source = "rpc"

type Refresher struct {
	fetcher  Fetcher
	target   Target
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func New(f Fetcher, t Target, interval time.Duration, log *zap.Logger, m *metrics.Metrics) *Refresher {
	return &Refresher{fetcher: f, target: t, interval: interval, log: log.Named("refresher"), metrics: m}
}

// Run refreshes immediately and then every interval until ctx ends.
func (r *Refresher) Run(ctx context.Context) {
	r.log.Info("started", zap.Duration("interval", r.interval))
	defer r.log.Info("stopped")

	tick := time.NewTicker(r.interval)
	defer tick.Stop()

	for {
		if _, err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// RefreshOnce fetches every tracked account and applies what came back.
func (r *Refresher) RefreshOnce(ctx context.Context) (int, error) {
	keys := r.target.AccountsToUpdate()
	updates, err := r.fetcher.Fetch(ctx, keys)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.metrics.FeedErrors.WithLabelValues(source).Inc()
		}
		return 0, err
	}
	if len(updates) < len(keys) {
		r.log.Warn("accounts missing on chain", zap.Int("want", len(keys)), zap.Int("got", len(updates)))
	}
	if len(updates) == 0 {
		return 0, nil
	}
	return r.target.Apply(source, updates...)
}
