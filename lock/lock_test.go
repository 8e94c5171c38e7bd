package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "ledger:1:2025-06-01")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				old := atomic.LoadInt32(&maxInside)
				if n <= old || atomic.CompareAndSwapInt32(&maxInside, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.Len())
}

func TestKeyMutex_DifferentKeysIndependent(t *testing.T) {
	m := NewKeyMutex()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	// WHEN: locking another key while "a" is held
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")

	// THEN: no wait
	require.NoError(t, err)
	unlockB()
	assert.Equal(t, 1, m.Len())
}

func TestKeyMutex_ContextCancelled(t *testing.T) {
	m := NewKeyMutex()

	unlock, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "k")

	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// The abandoned waiter does not keep the key alive
	unlock()
	assert.Equal(t, 0, m.Len())
}

func TestKeyMutex_UnlockIdempotent(t *testing.T) {
	m := NewKeyMutex()

	unlock, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	unlock()

	// The key can be taken again immediately
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err = m.Lock(ctx, "k")
	require.NoError(t, err)
	unlock()
	assert.Equal(t, 0, m.Len())
}
