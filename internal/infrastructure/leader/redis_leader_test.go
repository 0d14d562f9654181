package leader

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLeaderElection_SingleLeader(t *testing.T) {
	ctx := context.Background()
	_, client := setup(t)

	a := NewRedisLeaderElection(client, "", time.Minute)
	b := NewRedisLeaderElection(client, "", time.Minute)

	ok, err := a.BecomeLeader(ctx, "closer-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.BecomeLeader(ctx, "closer-b")
	require.NoError(t, err)
	assert.False(t, ok)

	isLeader, err := b.IsLeader(ctx, "closer-a")
	require.NoError(t, err)
	assert.True(t, isLeader)

	isLeader, err = b.IsLeader(ctx, "closer-b")
	require.NoError(t, err)
	assert.False(t, isLeader)

	require.NoError(t, a.ReleaseLeadership(ctx, "closer-a"))

	ok, err = b.BecomeLeader(ctx, "closer-b")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.ReleaseLeadership(ctx, "closer-b"))
}

func TestRedisLeaderElection_ReleaseOnlyOwnKey(t *testing.T) {
	ctx := context.Background()
	mr, client := setup(t)

	le := NewRedisLeaderElection(client, "closers", time.Minute)
	ok, err := le.BecomeLeader(ctx, "closer-a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, le.ReleaseLeadership(ctx, "closer-b"))
	got, err := mr.Get("closers")
	require.NoError(t, err)
	assert.Equal(t, "closer-a", got)

	require.NoError(t, le.ReleaseLeadership(ctx, "closer-a"))
	assert.False(t, mr.Exists("closers"))
}

func TestRedisLeaderElection_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, client := setup(t)

	le := NewRedisLeaderElection(client, "", time.Hour)
	ok, err := le.BecomeLeader(ctx, "closer-a")
	require.NoError(t, err)
	require.True(t, ok)
	le.stopHeartbeat("closer-a")

	mr.FastForward(2 * time.Hour)

	isLeader, err := le.IsLeader(ctx, "closer-a")
	require.NoError(t, err)
	assert.False(t, isLeader)
}
