// Package isolation serializes all work for one user while letting distinct
// users proceed fully concurrently, and bounds the number of resident
// per-user model sets.
package isolation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// #region errors

// ErrLockTimeout indicates the per-user lock could not be acquired within the
// configured timeout. The caller fails; it never deadlocks.
var ErrLockTimeout = errors.New("isolation: lock acquisition timed out")

// #endregion

// #region keyed-mutex

// KeyedMutex is a map of per-key FIFO locks. Waiters for the same key are
// granted strictly in arrival order; different keys never contend.
type KeyedMutex struct {
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	busy    bool
	waiters []chan struct{}
}

// NewKeyedMutex creates a keyed mutex with the given acquisition timeout.
// A non-positive timeout defaults to 5 seconds.
func NewKeyedMutex(timeout time.Duration) *KeyedMutex {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KeyedMutex{
		timeout: timeout,
		entries: make(map[string]*lockEntry),
	}
}

// Acquire takes the lock for key, blocking in FIFO order behind earlier
// callers. It fails with ErrLockTimeout after the acquisition timeout or with
// the context error on cancellation. The returned release function must be
// called exactly once on every exit path.
func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	if !e.busy {
		e.busy = true
		k.mu.Unlock()
		return k.releaser(key), nil
	}

	grant := make(chan struct{})
	e.waiters = append(e.waiters, grant)
	k.mu.Unlock()

	timer := time.NewTimer(k.timeout)
	defer timer.Stop()

	select {
	case <-grant:
		return k.releaser(key), nil
	case <-timer.C:
		return nil, k.abandon(key, grant, ErrLockTimeout)
	case <-ctx.Done():
		return nil, k.abandon(key, grant, ctx.Err())
	}
}

// abandon withdraws a waiter after timeout/cancellation. If the grant raced
// in first the lock is owned and must be passed on.
func (k *KeyedMutex) abandon(key string, grant chan struct{}, cause error) error {
	k.mu.Lock()
	e := k.entries[key]
	if e != nil {
		for i, w := range e.waiters {
			if w == grant {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				k.mu.Unlock()
				return cause
			}
		}
	}
	k.mu.Unlock()
	// Already granted: hand the lock to the next waiter.
	k.release(key)
	return cause
}

func (k *KeyedMutex) releaser(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { k.release(key) })
	}
}

func (k *KeyedMutex) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.entries[key]
	if e == nil {
		return
	}
	if len(e.waiters) > 0 {
		next := e.waiters[0]
		e.waiters = e.waiters[1:]
		close(next) // ownership transfers; busy stays true
		return
	}
	e.busy = false
	delete(k.entries, key)
}

// #endregion
