package cache

import (
	"context"
	"errors"
	"time"

	"github.com/asterdex-mlm/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL     = time.Hour
	lockReleaseTimeout = 5 * time.Second
)

// 令牌匹配才删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock 基于 SET NX 的跨进程互斥
type RunLock struct {
	store *Store
}

func NewRunLock(store *Store) *RunLock {
	return &RunLock{store: store}
}

// TryLock 抢占 key；Store 不可用时直接放行
func (l *RunLock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l == nil || !l.store.Enabled() {
		return func() {}, true, nil
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	client := l.store.Client()
	lockKey := l.store.Key("lock", key)
	token := uuid.NewString()
	acquired, err := client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil || !acquired {
		return nil, false, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
		defer cancel()
		err := releaseScript.Run(releaseCtx, client, []string{lockKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			logger.Warnw("run_lock_release_failed", "key", lockKey, "error", err)
		}
	}, true, nil
}
