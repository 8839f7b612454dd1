package service

import (
	"math"
	"sync"
	"time"
)

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func clockOrSystem(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

// keyedMutex serializes work per key. Entries are dropped when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// calculateChangePercent calculates percentage change between two values.
// A zero previous value maps to 100 for growth and 0 otherwise.
func calculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0.0
		}
		return 100.0
	}
	change := ((current - previous) / previous) * 100
	return round2(change)
}
