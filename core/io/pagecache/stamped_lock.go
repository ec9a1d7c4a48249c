package pagecache

import (
	"fmt"
	"sync"
)

// StampedLock is an exclusive lock whose Lock returns an opaque stamp that
// must be presented back to Unlock. Unlocking with a stale stamp means the
// caller lost track of its lock ownership, which is a caller bug and panics.
type StampedLock struct {
	mu sync.Mutex
	// stamp is only written while mu is held; Unlock reads it while the
	// caller still holds the lock.
	stamp uint64
}

// Lock acquires the lock exclusively, blocking until it is available, and
// returns the stamp required to release it.
func (l *StampedLock) Lock() uint64 {
	l.mu.Lock()
	l.stamp++
	return l.stamp
}

// Unlock releases the lock. The stamp must be the one returned by the
// matching Lock call.
func (l *StampedLock) Unlock(stamp uint64) {
	if stamp != l.stamp {
		panic(fmt.Sprintf("unlock with invalid stamp %d, lock is held with stamp %d", stamp, l.stamp))
	}
	l.mu.Unlock()
}
