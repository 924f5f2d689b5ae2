// Package keylock serializes work per string key within one process.
package keylock

import (
	"sync"
	"sync/atomic"

	"github.com/moby/locker"
)

// Locker hands out one mutex per key on top of moby/locker, which drops a
// key's mutex once nobody holds or awaits it. The zero value is ready to use.
type Locker struct {
	init    sync.Once
	keys    *locker.Locker
	pending atomic.Int64
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{}
}

func (l *Locker) keyed() *locker.Locker {
	l.init.Do(func() { l.keys = locker.New() })
	return l.keys
}

// Lock blocks until key is free and returns the matching unlock func.
// Calling unlock more than once is a no-op.
func (l *Locker) Lock(key string) (unlock func()) {
	keys := l.keyed()
	l.pending.Add(1)
	keys.Lock(key)

	var once sync.Once
	return func() {
		once.Do(func() {
			// Unlock only fails for keys that are not held, which once rules out.
			_ = keys.Unlock(key)
			l.pending.Add(-1)
		})
	}
}

// Len reports how many Lock calls are holding or waiting for a key.
func (l *Locker) Len() int {
	return int(l.pending.Load())
}
