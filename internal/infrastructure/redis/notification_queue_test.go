package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) (*miniredis.Miniredis, *NotificationQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewNotificationQueue(client, "", logger.NewNop())
}

func TestNotificationQueue_Dispatch(t *testing.T) {
	mr, q := newQueue(t)

	n := &domain.Notification{
		ID:            "n1",
		Kind:          domain.NotifyWinner,
		RecipientRole: domain.RoleBuyer,
		RecipientID:   "u1",
		AuctionID:     "a1",
		Amount:        decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	}
	require.NoError(t, q.Dispatch(context.Background(), n))

	items, err := mr.List(DefaultQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], `"kind":"winner"`)
	assert.Contains(t, items[0], `"recipient_id":"u1"`)
}

func TestNotificationQueue_ConsumeInOrder(t *testing.T) {
	mr, q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, q.Dispatch(ctx, &domain.Notification{ID: id, Kind: domain.NotifySellerNoBids, RecipientID: "shop-1"}))
	}
	_, err := mr.Lpush(DefaultQueue, "{not json")
	require.NoError(t, err)

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, func(n *domain.Notification) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, n.ID)
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, []string{"n1", "n2", "n3"}, got)
}
