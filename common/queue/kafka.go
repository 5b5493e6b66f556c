package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/landrecords/portal/common/logger"
)

// KafkaQueue publishes and consumes through Kafka. Each Subscribe call joins
// the consumer group named after the service with its own client.
type KafkaQueue struct {
	brokers  []string
	group    string
	producer *kgo.Client
	log      *logger.Logger

	mu        sync.Mutex
	consumers []*kgo.Client
}

// NewKafkaQueue connects a producer to brokers
func NewKafkaQueue(ctx context.Context, brokers []string, group string, log *logger.Logger) (*KafkaQueue, error) {
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if err := producer.Ping(ctx); err != nil {
		producer.Close()
		return nil, fmt.Errorf("failed to reach kafka brokers: %w", err)
	}

	log.Info("kafka connected", "brokers", brokers, "group", group)

	return &KafkaQueue{
		brokers:  brokers,
		group:    group,
		producer: producer,
		log:      log,
	}, nil
}

// EnsureTopic creates topic if it does not exist yet
func (q *KafkaQueue) EnsureTopic(ctx context.Context, topic string, partitions int32, replication int16) error {
	admin := kadm.NewClient(q.producer)
	resp, err := admin.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("failed to create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish produces one record and waits for the broker ack
func (q *KafkaQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	rec := &kgo.Record{Topic: topic, Key: []byte(key), Value: message}
	if err := q.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		q.log.Error("kafka produce failed", "topic", topic, "key", key, "error", err)
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	q.log.Debug("kafka produce", "topic", topic, "key", key)
	return nil
}

// Subscribe starts a consumer loop for topic. Offsets are committed
// automatically after each poll, so a failing handler is logged and skipped.
func (q *KafkaQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(q.brokers...),
		kgo.ConsumerGroup(q.group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	q.mu.Lock()
	q.consumers = append(q.consumers, consumer)
	q.mu.Unlock()

	q.log.Info("subscribing to topic", "topic", topic, "group", q.group)

	go func() {
		for {
			fetches := consumer.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				q.log.Info("subscription stopped", "topic", topic)
				return
			}
			fetches.EachError(func(t string, p int32, err error) {
				q.log.Warn("kafka fetch error", "topic", t, "partition", p, "error", err)
			})
			fetches.EachRecord(func(r *kgo.Record) {
				if err := handler(ctx, string(r.Key), r.Value); err != nil {
					q.log.Error("message handler error", "topic", r.Topic, "key", string(r.Key), "offset", r.Offset, "error", err)
				}
			})
		}
	}()

	return nil
}

// Close flushes pending records and closes all clients
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, c := range q.consumers {
		c.Close()
	}
	q.consumers = nil
	q.producer.Close()
	q.log.Info("kafka queue closed")
	return nil
}
