package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 9}, normalize([]int64{9, 3, 1, 3, 9}))
	assert.Equal(t, []int64{5}, normalize([]int64{5}))
	assert.Empty(t, normalize(nil))
}

func setupRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, 5*time.Second, zap.NewNop()), mr
}

func lockers(t *testing.T) map[string]Locker {
	redisLocker, _ := setupRedisLocker(t)
	return map[string]Locker{
		"local": NewLocalLocker(),
		"redis": redisLocker,
	}
}

func TestLockerMutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var (
				inside  atomic.Int32
				maxSeen atomic.Int32
				wg      sync.WaitGroup
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Acquire(context.Background(), 1)
					if !assert.NoError(t, err) {
						return
					}
					n := inside.Add(1)
					if n > maxSeen.Load() {
						maxSeen.Store(n)
					}
					time.Sleep(2 * time.Millisecond)
					inside.Add(-1)
					unlock()
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxSeen.Load())
		})
	}
}

func TestLockerOppositeOrderDoesNotDeadlock(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					ids := []int64{1, 2}
					if i%2 == 1 {
						ids = []int64{2, 1}
					}
					unlock, err := l.Acquire(ctx, ids...)
					if !assert.NoError(t, err) {
						return
					}
					unlock()
				}(i)
			}
			wg.Wait()
			assert.NoError(t, ctx.Err())
		})
	}
}

func TestLockerHonoursContext(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := l.Acquire(context.Background(), 7)
			require.NoError(t, err)
			defer unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err = l.Acquire(ctx, 7)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestLockerDuplicateIDs(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			unlock, err := l.Acquire(ctx, 3, 3)
			require.NoError(t, err)
			unlock()
			unlock()

			unlock, err = l.Acquire(ctx, 3)
			require.NoError(t, err)
			unlock()
		})
	}
}

func TestLocalLockerDropsIdleEntries(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Acquire(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, l.size())

	unlock()
	assert.Equal(t, 0, l.size())
}

func TestRedisLockerUsesAccountKeys(t *testing.T) {
	l, mr := setupRedisLocker(t)

	unlock, err := l.Acquire(context.Background(), 11)
	require.NoError(t, err)
	assert.True(t, mr.Exists("accountmanager:lock:account:11"))

	unlock()
	assert.False(t, mr.Exists("accountmanager:lock:account:11"))
}
