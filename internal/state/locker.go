package state

import (
	"sync"
)

type refMutex struct {
	sync.Mutex
	refs int
}

// Locker hands out one mutex per key and forgets it once nobody holds or waits on it.
type Locker struct {
	mu    sync.Mutex
	locks map[Key]*refMutex
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[Key]*refMutex)}
}

func (l *Locker) Lock(key Key) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &refMutex{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			l.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
