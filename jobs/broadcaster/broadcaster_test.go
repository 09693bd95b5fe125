package broadcaster

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gigadex/domain/orderbook"
	"gigadex/infra/cache"
	"gigadex/service"
	"gigadex/snapshot"
)

type source struct {
	key solana.PublicKey
	top service.TopOfBook
	err error
}

func (s *source) Key() solana.PublicKey                 { return s.key }
func (s *source) TopOfBook() (service.TopOfBook, error) { return s.top, s.err }

type memCache struct {
	puts []cache.Top
	// fail makes the next fail calls return an error
	fail int
}

func (c *memCache) Put(_ context.Context, t cache.Top) error {
	if c.fail > 0 {
		c.fail--
		return errors.New("redis: connection refused")
	}
	c.puts = append(c.puts, t)
	return nil
}

func TestPublishOnce(t *testing.T) {
	src := &source{
		key: solana.NewWallet().PublicKey(),
		top: service.TopOfBook{Top: orderbook.Top{BestBid: 1_500_000, BestAsk: 2_000_000}, Generation: 3, Slot: 99},
	}
	p := mocks.NewSyncProducer(t, sarama.NewConfig())
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Generation != 3 || ev.BestBidUI != "1.5" || ev.BestAskUI != "2" || ev.Market != src.key.String() {
			return errors.New("unexpected event")
		}
		return nil
	})
	c := &memCache{}
	b := New(src, p, "gigadex.top", c, 0, zaptest.NewLogger(t))

	sent, err := b.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, c.puts, 1)
	assert.Equal(t, uint64(99), c.puts[0].Slot)

	// same generation is not resent
	sent, err = b.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, b.Close())
}

func TestPublishOnce_RetriesFailedSend(t *testing.T) {
	src := &source{key: solana.NewWallet().PublicKey(), top: service.TopOfBook{Generation: 1}}
	p := mocks.NewSyncProducer(t, sarama.NewConfig())
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p.ExpectSendMessageAndSucceed()
	b := New(src, p, "gigadex.top", nil, 0, zaptest.NewLogger(t))

	_, err := b.PublishOnce(context.Background())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	sent, err := b.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	require.NoError(t, b.Close())
}

func TestPublishOnce_WaitsForSnapshot(t *testing.T) {
	src := &source{err: snapshot.ErrNotReady}
	c := &memCache{}
	b := New(src, nil, "", c, 0, zaptest.NewLogger(t))

	sent, err := b.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, c.puts)
	require.NoError(t, b.Close())
}

func TestPublishOnce_RetriesOnlyFailedCache(t *testing.T) {
	src := &source{key: solana.NewWallet().PublicKey(), top: service.TopOfBook{Generation: 4}}
	p := mocks.NewSyncProducer(t, sarama.NewConfig())
	// exactly one send: a second one fails the mock
	p.ExpectSendMessageAndSucceed()
	c := &memCache{fail: 1}
	b := New(src, p, "gigadex.top", c, 0, zaptest.NewLogger(t))

	sent, err := b.PublishOnce(context.Background())
	require.Error(t, err)
	assert.True(t, sent)
	assert.Empty(t, c.puts)

	sent, err = b.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, c.puts, 1)
	assert.Equal(t, uint64(4), c.puts[0].Generation)

	sent, err = b.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
	require.NoError(t, b.Close())
}
