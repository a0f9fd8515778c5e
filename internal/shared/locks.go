package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another posting holds the reference key lock.
var ErrLockHeld = errors.New("posting lock held")

// PostingLockKey builds redis keys serialising postings per reference key.
func PostingLockKey(refType string, refID int64) string {
	return fmt.Sprintf("ledger:post:%s:%d:lock", refType, refID)
}

// rebuildLockKey marks a rebuild in progress. While set, per-key posting
// locks are refused so document postings cannot interleave with the rebuild.
const rebuildLockKey = "ledger:rebuild:lock"

const postingLockPattern = "ledger:post:*:lock"

// rebuildLockTTL bounds a rebuild holder that crashed without releasing.
const rebuildLockTTL = 5 * time.Minute

// PostingLocks serialises concurrent postings for the same reference key.
// Postings for different keys proceed independently.
type PostingLocks struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPostingLocks returns a PostingLocks with the supplied TTL guarding
// against locks leaked by crashed holders.
func NewPostingLocks(client *redis.Client, ttl time.Duration) *PostingLocks {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PostingLocks{client: client, ttl: ttl}
}

// Acquire takes the lock for one reference key. It returns ErrLockHeld when
// a concurrent posting owns it; callers retry after the loser aborts.
// The returned release func is safe to call exactly once.
func (l *PostingLocks) Acquire(ctx context.Context, refType string, refID int64) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := PostingLockKey(refType, refID)
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		_ = l.client.Del(context.WithoutCancel(ctx), key).Err()
	}
	// Checked after taking the per-key lock. Each side sets its own mark
	// first, so a posting and a rebuild can never both proceed.
	rebuilding, err := l.client.Exists(ctx, rebuildLockKey).Result()
	if err != nil {
		release()
		return nil, err
	}
	if rebuilding > 0 {
		release()
		return nil, ErrLockHeld
	}
	return release, nil
}

// AcquireRebuild takes the whole-ledger rebuild lock. It refuses while any
// posting lock is outstanding, and while held no new posting lock can be
// acquired. The returned release func is safe to call exactly once.
func (l *PostingLocks) AcquireRebuild(ctx context.Context) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	ok, err := l.client.SetNX(ctx, rebuildLockKey, "1", rebuildLockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		_ = l.client.Del(context.WithoutCancel(ctx), rebuildLockKey).Err()
	}
	iter := l.client.Scan(ctx, 0, postingLockPattern, 100).Iterator()
	if iter.Next(ctx) {
		release()
		return nil, ErrLockHeld
	}
	if err := iter.Err(); err != nil {
		release()
		return nil, err
	}
	return release, nil
}
