// Package lock serializes ledger operations per account. Locks are always
// taken in ascending account id order so two operations touching the same
// pair of accounts can never wait on each other in a cycle.
package lock

import (
	"context"
	"sort"
)

// Unlock releases every lock taken by one Acquire call.
type Unlock func()

// Locker acquires exclusive access to a set of accounts.
type Locker interface {
	// Acquire blocks until all ids are held or ctx is done. Duplicate ids
	// are locked once.
	Acquire(ctx context.Context, ids ...int64) (Unlock, error)
}

// normalize sorts ids ascending and drops duplicates.
func normalize(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
