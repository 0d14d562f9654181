package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const DefaultQueue = "auction:notifications"

// NotificationQueue is an outbound notification queue on a Redis list.
// Producers LPUSH, consumers BRPOP, so delivery is FIFO and each message goes
// to exactly one consumer.
type NotificationQueue struct {
	client      *redis.Client
	queue       string
	pollTimeout time.Duration
	log         logger.Logger
}

var (
	_ domain.NotificationDispatcher = (*NotificationQueue)(nil)
	_ domain.NotificationConsumer   = (*NotificationQueue)(nil)
)

func NewNotificationQueue(client *redis.Client, queue string, log logger.Logger) *NotificationQueue {
	if queue == "" {
		queue = DefaultQueue
	}
	return &NotificationQueue{
		client:      client,
		queue:       queue,
		pollTimeout: time.Second,
		log:         log,
	}
}

func (q *NotificationQueue) Dispatch(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.ID, err)
	}

	if err := q.client.LPush(ctx, q.queue, payload).Err(); err != nil {
		return fmt.Errorf("push notification %s: %w", n.ID, err)
	}
	return nil
}

// Consume blocks, handing each queued notification to handler until ctx is
// cancelled. Malformed payloads and handler errors are logged and dropped.
func (q *NotificationQueue) Consume(ctx context.Context, handler domain.NotificationHandler) error {
	q.log.Info("Consuming notifications", "queue", q.queue)

	for {
		if err := ctx.Err(); err != nil {
			q.log.Info("Notification consumer stopped")
			return err
		}

		res, err := q.client.BRPop(ctx, q.pollTimeout, q.queue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			q.log.Error("Failed to pop notification", "queue", q.queue, "error", err)
			sleep(ctx, q.pollTimeout)
			continue
		}

		// res is [queue, payload]
		payload := res[1]
		var n domain.Notification
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			q.log.Error("Failed to parse notification", "payload", payload, "error", err)
			continue
		}

		if err := handler(&n); err != nil {
			q.log.Error("Failed to handle notification", "notification_id", n.ID, "kind", n.Kind, "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
