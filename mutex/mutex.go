// Package mutex is a lock whose acquisition can be abandoned through a
// context. The zero value is unlocked.
package mutex

import (
	"context"
	"sync"
)

type Mutex struct {
	once sync.Once
	cn   chan struct{}
}

func (mx *Mutex) init() {
	mx.once.Do(func() {
		mx.cn = make(chan struct{}, 1)
	})
}

// Hold blocks until the lock is taken or ctx is done. It reports whether
// the lock was taken.
func (mx *Mutex) Hold(ctx context.Context) bool {
	mx.init()
	if ctx.Err() != nil {
		return false
	}
	select {
	case mx.cn <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (mx *Mutex) TryHold() bool {
	mx.init()
	select {
	case mx.cn <- struct{}{}:
		return true
	default:
		return false
	}
}

func (mx *Mutex) Release() {
	mx.init()
	select {
	case <-mx.cn:
	default:
		panic("mutex: release of unlocked mutex")
	}
}
