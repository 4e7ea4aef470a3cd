package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillscope/ingest-service/internal/events"
	"skillscope/ingest-service/internal/ingest"
	"skillscope/ingest-service/internal/model"
)

var (
	_ ingest.Publisher = (*events.Publisher)(nil)
	_ ingest.Locker    = (*events.Locker)(nil)
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestPublisher_PublishSourceScraped(t *testing.T) {
	_, rdb := newClient(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, events.ChannelSourceScraped)
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	finished := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	err = events.NewPublisher(rdb).PublishSourceScraped(ctx, model.Summary{
		RunID: "run-1", Source: "RemoteOK", Created: 2, Skipped: 1, FailedPages: 1,
	}, finished)
	require.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got events.SourceScraped
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, events.SourceScraped{
		Type:        events.ChannelSourceScraped,
		RunID:       "run-1",
		Source:      "RemoteOK",
		Created:     2,
		Skipped:     1,
		FailedPages: 1,
		FinishedAt:  finished,
	}, got)
}

func TestPublisher_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	err = events.NewPublisher(rdb).PublishSourceScraped(context.Background(), model.Summary{}, time.Now())
	assert.Error(t, err)
}

func TestLocker_ExclusiveUntilReleased(t *testing.T) {
	mr, rdb := newClient(t)
	ctx := context.Background()
	l := events.NewLocker(rdb, time.Minute)

	unlock, ok, err := l.TryLock(ctx, "Indeed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(events.LockKey("Indeed")))

	_, ok, err = l.TryLock(ctx, "Indeed")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must miss")

	_, ok, err = l.TryLock(ctx, "RemoteOK")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per source")

	unlock()
	assert.False(t, mr.Exists(events.LockKey("Indeed")))

	_, ok, err = l.TryLock(ctx, "Indeed")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_Expires(t *testing.T) {
	mr, rdb := newClient(t)
	ctx := context.Background()
	l := events.NewLocker(rdb, 30*time.Second)

	_, ok, _ := l.TryLock(ctx, "Indeed")
	require.True(t, ok)

	mr.FastForward(31 * time.Second)
	_, ok, err := l.TryLock(ctx, "Indeed")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	mr, rdb := newClient(t)
	ctx := context.Background()
	l := events.NewLocker(rdb, 10*time.Second)

	staleUnlock, ok, _ := l.TryLock(ctx, "Indeed")
	require.True(t, ok)
	mr.FastForward(11 * time.Second)

	_, ok, _ = l.TryLock(ctx, "Indeed")
	require.True(t, ok)

	staleUnlock()
	assert.True(t, mr.Exists(events.LockKey("Indeed")), "expired holder must not release the new lock")
}
