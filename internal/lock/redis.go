package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Aidin1998/accountmanager/pkg/metrics"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix  = "accountmanager:lock:account:"
	maxLockTries   = 1000
	lockRetryDelay = 10 * time.Millisecond
	unlockTimeout  = 2 * time.Second
	defaultLockTTL = 10 * time.Second
)

// RedisLocker takes account locks through redsync so that several service
// replicas sharing one database serialize on the same accounts. The lock
// expiry must exceed the ledger timeout.
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client goredislib.UniversalClient, expiry time.Duration, logger *zap.Logger) *RedisLocker {
	if expiry <= 0 {
		expiry = defaultLockTTL
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		logger: logger.Named("redis-locker"),
	}
}

var _ Locker = (*RedisLocker)(nil)

func (l *RedisLocker) Acquire(ctx context.Context, ids ...int64) (Unlock, error) {
	start := time.Now()
	ids = normalize(ids)

	held := make([]*redsync.Mutex, 0, len(ids))
	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if ok, err := held[i].UnlockContext(unlockCtx); !ok || err != nil {
				l.logger.Warn("Failed to release account lock",
					zap.String("lock_key", held[i].Name()),
					zap.Bool("unlock_ok", ok),
					zap.Error(err))
			}
		}
	}

	for _, id := range ids {
		mutex := l.rs.NewMutex(
			lockKey(id),
			redsync.WithExpiry(l.expiry),
			redsync.WithTries(maxLockTries),
			redsync.WithRetryDelay(lockRetryDelay),
		)
		if err := mutex.LockContext(ctx); err != nil {
			release()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", lockKey(id), err)
		}
		held = append(held, mutex)
	}

	metrics.LockWaitDuration.WithLabelValues("redis").Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func lockKey(id int64) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, id)
}
