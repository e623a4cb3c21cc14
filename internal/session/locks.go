package session

import "sync"

// Locks provides per-(identity, instance) mutual exclusion so concurrent
// deliveries for the same conversation cannot interleave their
// read-modify-write cycles. Turns for different sessions proceed
// independently.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*entry)}
}

// Acquire blocks until the session lock is held and returns the release
// function. Entries are reference counted so the table does not grow with
// every conversation ever seen.
func (l *Locks) Acquire(identity, instance string) func() {
	key := Key(identity, instance)

	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}
