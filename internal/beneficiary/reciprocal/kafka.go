package reciprocal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"caredesk/internal/beneficiary/metrics"
)

// DefaultTopic carries reciprocal tasks keyed by target record, so tasks for
// one record stay ordered within a partition.
const DefaultTopic = "beneficiary.reciprocal"

// KafkaDispatcher publishes tasks for a Consumer to apply.
type KafkaDispatcher struct {
	client  *kgo.Client
	topic   string
	metrics *metrics.Metrics
}

func NewKafkaDispatcher(client *kgo.Client, topic string, m *metrics.Metrics) *KafkaDispatcher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaDispatcher{client: client, topic: topic, metrics: m}
}

// Dispatch produces every task and waits for the broker acknowledgements.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, tasks []Task) error {
	records := make([]*kgo.Record, 0, len(tasks))
	for _, t := range tasks {
		value, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode reciprocal task: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: d.topic,
			Key:   []byte(t.TargetID.String()),
			Value: value,
		})
	}
	if err := d.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		if d.metrics != nil {
			for range tasks {
				d.metrics.IncrementReciprocalEdge(metrics.EdgeFailed)
			}
		}
		return fmt.Errorf("produce reciprocal tasks: %w", err)
	}
	return nil
}

// Consumer applies tasks from the topic. Offsets are committed only after the
// records of a poll have been applied, so a crash replays them; the idempotent
// Applier absorbs the replay.
type Consumer struct {
	client      *kgo.Client
	applier     TaskApplier
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	backoff     time.Duration
}

type ConsumerOption func(*Consumer)

func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

func WithConsumerMetrics(m *metrics.Metrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// NewConsumer expects a client configured with a consumer group, the task topic
// and auto-commit disabled (see ConsumerOpts).
func NewConsumer(client *kgo.Client, applier TaskApplier, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		client:      client,
		applier:     applier,
		logger:      slog.Default(),
		maxAttempts: 5,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConsumerOpts are the client options a Consumer requires.
func ConsumerOpts(group, topic string) []kgo.Opt {
	if topic == "" {
		topic = DefaultTopic
	}
	return []kgo.Opt{
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, fe := range fetches.Errors() {
			c.logger.ErrorContext(ctx, "reciprocal fetch failed",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		var records []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			c.handle(ctx, r)
			records = append(records, r)
		})
		if len(records) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, records...); err != nil {
			c.logger.ErrorContext(ctx, "reciprocal offset commit failed", "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, r *kgo.Record) {
	var task Task
	if err := json.Unmarshal(r.Value, &task); err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed reciprocal task",
			"partition", r.Partition,
			"offset", r.Offset,
			"error", err,
		)
		return
	}

	delay := c.backoff
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = c.applier.Apply(ctx, task); err == nil {
			return
		}
		if attempt == c.maxAttempts || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
		}
	}
	if c.metrics != nil {
		c.metrics.IncrementReciprocalEdge(metrics.EdgeFailed)
	}
	c.logger.ErrorContext(ctx, "reciprocal edge not written",
		"request_id", task.RequestID,
		"target_id", task.TargetID.String(),
		"offset", r.Offset,
		"error", err,
	)
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, adm *kadm.Client, topic string, partitions int32, replicationFactor int16) error {
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
