package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

type Locker struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewLocker(rdb *redis.Client, log *zap.Logger) *Locker {
	return &Locker{rdb: rdb, log: log}
}

// Acquire takes key with SET NX for ttl. When ok is false someone else holds
// it. release only deletes the key if this holder still owns it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	value := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Released with a fresh context so a cancelled request still frees the lock.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		deleted, err := releaseScript.Run(rctx, l.rdb, []string{key}, value).Int64()
		if err != nil {
			l.log.Error("failed to release lock", zap.String("key", key), zap.Error(err))
			return
		}
		if deleted == 0 {
			l.log.Warn("lock expired before release", zap.String("key", key))
		}
	}
	return release, true, nil
}
