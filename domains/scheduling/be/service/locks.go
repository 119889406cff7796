package service

import "sync"

// stallLocks hands out one mutex per key and forgets it once no caller holds or waits on it.
type stallLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newStallLocks() *stallLocks {
	return &stallLocks{locks: make(map[string]*refMutex)}
}

func (l *stallLocks) lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &refMutex{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *stallLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
