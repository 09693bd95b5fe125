// Package ingest applies account updates streamed from Kafka.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"gigadex/domain/account"
	"gigadex/infra/metrics"
)

type Source interface {
	Next(ctx context.Context) (account.Update, error)
}

type Target interface {
	Tracks(key solana.PublicKey) bool
	Apply(source string, updates ...account.Update) (int, error)
}

const source = "kafka"

type Ingest struct {
	src     Source
	target  Target
	backoff time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(src Source, t Target, log *zap.Logger, m *metrics.Metrics) *Ingest {
	return &Ingest{src: src, target: t, backoff: time.Second, log: log.Named("ingest"), metrics: m}
}

// Run applies updates until ctx ends. Updates for accounts the target
// does not track are dropped; read errors are retried after a pause.
func (i *Ingest) Run(ctx context.Context) {
	i.log.Info("started")
	defer i.log.Info("stopped")

	for {
		u, err := i.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			i.metrics.FeedErrors.WithLabelValues(source).Inc()
			i.log.Warn("read update", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(i.backoff):
			}
			continue
		}

		if !i.target.Tracks(u.Key) {
			continue
		}
		if _, err := i.target.Apply(source, u); err != nil {
			i.log.Warn("apply update", zap.Stringer("update", u), zap.Error(err))
		}
	}
}
