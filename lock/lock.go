/*
Package lock provides the per-key critical sections used by ledger writers.

PURPOSE:
  Every write to one (shop, day) ledger runs under a lock named after its
  key. Two implementations share the ledger.Locker shape:

    KeyMutex  in-process, for a single server or tests
    Redis     distributed, for several servers sharing one database

  Both block until the lock is held or ctx is done. Different keys never
  contend.

SEE ALSO:
  - ledger/store.go: Locker interface
  - ledger/service.go: SaveDraft and Publish take the lock
*/
package lock

import (
	"context"
	"sync"
)

// =============================================================================
// KEY MUTEX - In-process lock per key
// =============================================================================

// KeyMutex hands out one mutex per key. Idle keys are removed.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is a one-slot semaphore so waiting can observe ctx.
type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is held or ctx is done. The returned unlock is
// safe to call more than once.
func (m *KeyMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			m.release(key, l)
		})
	}, nil
}

func (m *KeyMutex) release(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (m *KeyMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
