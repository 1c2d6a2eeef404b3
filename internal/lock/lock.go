// Package lock serializes work per flight. Different flights never share a lock.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a flight lock could not be obtained in time.
var ErrLockTimeout = errors.New("flight lock timeout")

type Locker interface {
	// Lock blocks until the flight is held or ctx is done. The returned
	// function releases it and is safe to call more than once.
	Lock(ctx context.Context, flightID int64) (func(), error)
}

// KeyedMutex is an in-process mutex per flight id. Entries are reference
// counted and removed once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
	wait  time.Duration
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex gives up on a flight after wait. A non-positive wait leaves
// only the caller's context as the bound.
func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyedEntry), wait: wait}
}

func (k *KeyedMutex) Lock(ctx context.Context, flightID int64) (func(), error) {
	if k.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.wait)
		defer cancel()
	}

	k.mu.Lock()
	e, ok := k.locks[flightID]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[flightID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				k.release(flightID, e)
			})
		}, nil
	case <-ctx.Done():
		k.release(flightID, e)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}
}

func (k *KeyedMutex) release(flightID int64, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, flightID)
	}
}

// size is the number of flights currently held or awaited.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

type chain []Locker

// Chain acquires lockers in order and releases them in reverse.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

func (c chain) Lock(ctx context.Context, flightID int64) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		unlock, err := l.Lock(ctx, flightID)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}
