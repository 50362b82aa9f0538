// Package kafka opens the franz-go clients used for reciprocal propagation.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"caredesk/internal/platform/config"
)

// Clients pairs the producer with the consumer-group client. Admin shares the
// producer connection.
type Clients struct {
	Producer *kgo.Client
	Consumer *kgo.Client
	Admin    *kadm.Client
}

// Connect opens and pings both clients. consumerOpts carry the group and topic
// subscription the caller needs.
func Connect(ctx context.Context, cfg config.KafkaConfig, consumerOpts ...kgo.Opt) (*Clients, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	if err := producer.Ping(ctx); err != nil {
		producer.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}

	consumer, err := kgo.NewClient(append([]kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}, consumerOpts...)...)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	return &Clients{
		Producer: producer,
		Consumer: consumer,
		Admin:    kadm.NewClient(producer),
	}, nil
}

// Close closes both clients.
func (c *Clients) Close() {
	c.Consumer.Close()
	c.Producer.Close()
}
