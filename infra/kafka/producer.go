// Package kafka moves account updates over a Kafka topic. Messages are
// keyed by the base58 account address; the value is [slot:8][data].
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"gigadex/domain/account"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Send(ctx context.Context, updates ...account.Update) error {
	msgs := make([]kafka.Message, 0, len(updates))
	for _, u := range updates {
		msgs = append(msgs, Message(u))
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Message frames u for the accounts topic.
func Message(u account.Update) kafka.Message {
	return kafka.Message{
		Key:   []byte(u.Key.String()),
		Value: u.EncodeValue(),
	}
}
