package lock

import (
	"context"
	"sync"
	"time"

	"github.com/Aidin1998/accountmanager/pkg/metrics"
	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// LocalLocker holds one single-slot semaphore per account for the lifetime of
// the process. Entries are dropped once nobody holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[int64]*entry)}
}

var _ Locker = (*LocalLocker)(nil)

func (l *LocalLocker) Acquire(ctx context.Context, ids ...int64) (Unlock, error) {
	start := time.Now()
	ids = normalize(ids)

	held := make([]int64, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}

	for _, id := range ids {
		e := l.ref(id)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			l.unref(id)
			release()
			return nil, err
		}
		held = append(held, id)
	}

	metrics.LockWaitDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *LocalLocker) ref(id int64) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[id]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.locks[id] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) unref(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.locks[id]; ok {
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
	}
}

func (l *LocalLocker) release(id int64) {
	l.mu.Lock()
	e := l.locks[id]
	l.mu.Unlock()
	e.sem.Release(1)
	l.unref(id)
}

// size reports the number of tracked accounts.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
