// Package broadcaster announces top-of-book changes on Kafka and mirrors
// them into the Redis cache.
package broadcaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"gigadex/domain/quote"
	"gigadex/infra/cache"
	"gigadex/service"
	"gigadex/snapshot"
)

type Source interface {
	Key() solana.PublicKey
	TopOfBook() (service.TopOfBook, error)
}

type Cache interface {
	Put(ctx context.Context, t cache.Top) error
}

type Event struct {
	V          int    `json:"v"`
	Type       string `json:"type"`
	Market     string `json:"market"`
	Generation uint64 `json:"generation"`
	Slot       uint64 `json:"slot"`
	BestBid    uint64 `json:"best_bid"`
	BestAsk    uint64 `json:"best_ask"`
	BestBidUI  string `json:"best_bid_ui"`
	BestAskUI  string `json:"best_ask_ui"`
	Time       int64  `json:"time"`
}

type Broadcaster struct {
	src      Source
	producer sarama.SyncProducer
	topic    string
	cache    Cache
	interval time.Duration
	log      *zap.Logger

	// sent and cached are the last generations delivered to each sink.
	sent   uint64
	cached uint64
}

// NewProducer returns a sync producer that waits for all replicas.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return sarama.NewSyncProducer(brokers, cfg)
}

// New publishes to topic through producer and writes c. Either producer
// or c may be nil.
func New(src Source, producer sarama.SyncProducer, topic string, c Cache, interval time.Duration, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		src:      src,
		producer: producer,
		topic:    topic,
		cache:    c,
		interval: interval,
		log:      log.Named("broadcaster"),
	}
}

func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("started", zap.String("topic", b.topic), zap.Duration("interval", b.interval))
	defer b.log.Info("stopped")

	tick := time.NewTicker(b.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := b.PublishOnce(ctx); err != nil {
				b.log.Warn("publish top of book", zap.Error(err))
			}
		}
	}
}

// PublishOnce delivers the current top of book to every sink that has
// not seen its generation yet. A sink that fails is retried on the next
// call without repeating the sinks that succeeded.
func (b *Broadcaster) PublishOnce(ctx context.Context) (bool, error) {
	top, err := b.src.TopOfBook()
	if errors.Is(err, snapshot.ErrNotReady) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	market := b.src.Key().String()
	now := time.Now()
	var wrote bool

	if top.Generation > b.sent {
		if b.producer != nil {
			if err := b.send(market, top, now); err != nil {
				return false, err
			}
			wrote = true
		}
		b.sent = top.Generation
	}

	if top.Generation > b.cached {
		if b.cache != nil {
			err := b.cache.Put(ctx, cache.Top{
				Market:     market,
				BestBid:    top.BestBid,
				BestAsk:    top.BestAsk,
				Generation: top.Generation,
				Slot:       top.Slot,
				UpdatedAt:  now,
			})
			if err != nil {
				return wrote, fmt.Errorf("cache top of book: %w", err)
			}
			wrote = true
		}
		b.cached = top.Generation
	}
	return wrote, nil
}

func (b *Broadcaster) send(market string, top service.TopOfBook, now time.Time) error {
	payload, err := json.Marshal(Event{
		V:          1,
		Type:       "top_of_book",
		Market:     market,
		Generation: top.Generation,
		Slot:       top.Slot,
		BestBid:    top.BestBid,
		BestAsk:    top.BestAsk,
		BestBidUI:  quote.FormatUnits(top.BestBid),
		BestAskUI:  quote.FormatUnits(top.BestAsk),
		Time:       now.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(market),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (b *Broadcaster) Close() error {
	if b.producer == nil {
		return nil
	}
	return b.producer.Close()
}
