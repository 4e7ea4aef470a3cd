// Package events publishes run summaries on Redis and guards sources with
// Redis run locks so two instances never scrape the same source at once.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"skillscope/ingest-service/internal/model"
)

// ChannelSourceScraped carries one SourceScraped event per finished source run.
const ChannelSourceScraped = "EVENT_SOURCE_SCRAPED"

// SourceScraped is the JSON payload published after a source run.
type SourceScraped struct {
	Type        string    `json:"type"`
	RunID       string    `json:"runId"`
	Source      string    `json:"source"`
	Created     int       `json:"created"`
	Skipped     int       `json:"skipped"`
	Refreshed   int       `json:"refreshed"`
	FailedPages int       `json:"failedPages"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// ─── Publisher ───────────────────────────────────────────────────────────────

// Publisher sends run summaries over Redis pub/sub.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher returns a Publisher using rdb.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishSourceScraped publishes s on ChannelSourceScraped.
func (p *Publisher) PublishSourceScraped(ctx context.Context, s model.Summary, finishedAt time.Time) error {
	payload, err := json.Marshal(SourceScraped{
		Type:        ChannelSourceScraped,
		RunID:       s.RunID,
		Source:      s.Source,
		Created:     s.Created,
		Skipped:     s.Skipped,
		Refreshed:   s.Refreshed,
		FailedPages: s.FailedPages,
		FinishedAt:  finishedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ChannelSourceScraped, err)
	}
	if err := p.rdb.Publish(ctx, ChannelSourceScraped, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelSourceScraped, err)
	}
	return nil
}

// ─── Locker ──────────────────────────────────────────────────────────────────

const lockPrefix = "ingest:lock:"

// release deletes the lock only while it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker takes per-source run locks with SET NX PX. A lock expires after
// ttl so a crashed holder cannot block a source forever.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLocker returns a Locker whose locks expire after ttl.
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl}
}

// LockKey is the Redis key guarding source.
func LockKey(source string) string { return lockPrefix + source }

// TryLock attempts to take the lock for source without waiting.
func (l *Locker) TryLock(ctx context.Context, source string) (func(), bool, error) {
	key, token := LockKey(source), uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", source, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = release.Run(ctx, l.rdb, []string{key}, token).Err()
	}
	return unlock, true, nil
}
