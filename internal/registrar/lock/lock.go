// Package lock provides per-parent-label mutual exclusion for the
// registration critical section. Acquisition is non-blocking: a caller that
// loses the race is told to retry rather than queued, which also rejects
// re-entrant registration attempts made from within an in-flight call.
package lock

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"subreg/pkg/platform/sentinel"
)

// Locker hands out per-label leases.
type Locker interface {
	// TryLock acquires the label's lease or fails with sentinel.ErrLockHeld.
	// The returned function releases the lease.
	TryLock(ctx context.Context, label common.Hash) (func(), error)
}

// MemoryLocker serializes labels within a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[common.Hash]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[common.Hash]struct{})}
}

func (l *MemoryLocker) TryLock(_ context.Context, label common.Hash) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[label]; ok {
		return nil, sentinel.ErrLockHeld
	}
	l.held[label] = struct{}{}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, label)
	}, nil
}
