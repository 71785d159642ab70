package ledger

import (
	"sync"

	"dietledger/internal/core"
)

// DateLocks serializes read-modify-write cycles on the same calendar date.
// Entries are reference counted and dropped once nobody holds them.
type DateLocks struct {
	mu    sync.Mutex
	locks map[string]*dateLock
}

type dateLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until date is free and returns the matching unlock.
func (l *DateLocks) Lock(date core.Date) func() {
	key := date.String()

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*dateLock)
	}
	dl, ok := l.locks[key]
	if !ok {
		dl = &dateLock{}
		l.locks[key] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// held returns the number of dates with a live lock entry.
func (l *DateLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
