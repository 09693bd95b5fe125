package kafka

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/segmentio/kafka-go"

	"gigadex/domain/account"
)

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10 << 20,
		}),
	}
}

// Next blocks until the next update arrives or ctx ends. With a group
// id the offset is committed as the message is read.
func (c *Consumer) Next(ctx context.Context) (account.Update, error) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return account.Update{}, err
	}
	return Decode(m)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Decode parses a message written by Producer.
func Decode(m kafka.Message) (account.Update, error) {
	key, err := solana.PublicKeyFromBase58(string(m.Key))
	if err != nil {
		return account.Update{}, fmt.Errorf("message key %q: %w", m.Key, err)
	}
	u, err := account.DecodeValue(key, m.Value)
	if err != nil {
		return account.Update{}, fmt.Errorf("message %s@%d: %w", key, m.Offset, err)
	}
	return u, nil
}
