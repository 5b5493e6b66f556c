package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/landrecords/portal/common/config"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/queue"
	"github.com/landrecords/portal/common/redis"
	"github.com/landrecords/portal/common/workflow"
)

// QueueNotifier publishes notifications to a queue topic keyed by user
type QueueNotifier struct {
	queue queue.Queue
	topic string
}

func NewQueueNotifier(q queue.Queue, topic string) *QueueNotifier {
	return &QueueNotifier{queue: q, topic: topic}
}

func (n *QueueNotifier) Notify(ctx context.Context, msg workflow.Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return n.queue.Publish(ctx, n.topic, msg.UserID, body)
}

// DefaultDedupeTTL bounds how long RedisNotifier remembers delivered messages
const DefaultDedupeTTL = 24 * time.Hour

// RedisNotifier appends notifications to a per-user stream and publishes them
// on a channel for live listeners. A message is delivered at most once per
// dedupe window.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	ttl     time.Duration
}

func NewRedisNotifier(client *redis.Client, channel string, ttl time.Duration) *RedisNotifier {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisNotifier{client: client, channel: channel, ttl: ttl}
}

// StreamKey is the stream holding userID's notifications
func (n *RedisNotifier) StreamKey(userID string) string {
	return n.channel + ":user:" + userID
}

func dedupeKey(channel string, msg workflow.Notification) string {
	return fmt.Sprintf("%s:sent:%s:%s:%s:%s:%d",
		channel, msg.UserID, msg.Event, msg.EntityID, msg.To, msg.OccurredAt.UnixNano())
}

func (n *RedisNotifier) Notify(ctx context.Context, msg workflow.Notification) error {
	fresh, err := n.client.SetNX(ctx, dedupeKey(n.channel, msg), "1", n.ttl)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if _, err := n.client.AddToStream(ctx, n.StreamKey(msg.UserID), map[string]interface{}{
		"event":     msg.Event,
		"kind":      string(msg.Kind),
		"entity_id": msg.EntityID.String(),
		"payload":   string(body),
	}); err != nil {
		return err
	}
	return n.client.PublishEvent(ctx, n.channel, string(body))
}

// LogNotifier only logs. Used when no delivery backend is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, msg workflow.Notification) error {
	n.log.InfoContext(ctx, "notification",
		"user_id", msg.UserID,
		"event", msg.Event,
		"kind", msg.Kind,
		"entity_id", msg.EntityID,
		"to", msg.To,
	)
	return nil
}

// New builds the notifier selected by cfg.Notify.Backend. q and rc may be nil
// when their backend is not selected.
func New(cfg *config.Config, q queue.Queue, rc *redis.Client, log *logger.Logger) (workflow.Notifier, error) {
	switch cfg.Notify.Backend {
	case "queue":
		if q == nil {
			return nil, fmt.Errorf("notify backend queue requires a queue")
		}
		return NewQueueNotifier(q, cfg.Queue.Topic), nil
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("notify backend redis requires a redis client")
		}
		return NewRedisNotifier(rc, cfg.Notify.Channel, DefaultDedupeTTL), nil
	case "log":
		return NewLogNotifier(log), nil
	default:
		return nil, fmt.Errorf("unknown notify backend: %s", cfg.Notify.Backend)
	}
}
