// Package metrics defines the Prometheus instruments of the quoter.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gigadex"

type Metrics struct {
	Quotes           *prometheus.CounterVec
	QuoteLatency     prometheus.Histogram
	UpdatesApplied   *prometheus.CounterVec
	UpdatesStale     prometheus.Counter
	UpdatesUnchanged prometheus.Counter
	DecodeErrors     *prometheus.CounterVec
	Generation       prometheus.Gauge
	BestPrice        *prometheus.GaugeVec
	FeedErrors       *prometheus.CounterVec
}

// New registers the instruments with reg. Tests pass a fresh
// prometheus.NewRegistry so instances do not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Quotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Quotes served, by taker side and outcome.",
		}, []string{"side", "result"}),
		QuoteLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_seconds",
			Help:      "Time to simulate one quote.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		UpdatesApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_updates_applied_total",
			Help:      "Account updates decoded into a published snapshot.",
		}, []string{"source"}),
		UpdatesStale: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_updates_stale_total",
			Help:      "Account updates skipped because a newer slot was already applied.",
		}),
		UpdatesUnchanged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_updates_unchanged_total",
			Help:      "Account updates that repeated the bytes already held and only advanced the slot.",
		}),
		DecodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_decode_errors_total",
			Help:      "Account updates rejected by the layout decoder.",
		}, []string{"source"}),
		Generation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_generation",
			Help:      "Generation of the snapshot currently served.",
		}),
		BestPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_price",
			Help:      "Best price on each side of the book, 0 when empty.",
		}, []string{"side"}),
		FeedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Failures reading account updates from a feed.",
		}, []string{"source"}),
	}
}

func (m *Metrics) ObserveQuote(side, result string, start time.Time) {
	m.Quotes.WithLabelValues(side, result).Inc()
	m.QuoteLatency.Observe(time.Since(start).Seconds())
}
