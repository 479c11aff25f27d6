package reconcile

import "sync"

// OrderLocks hands out one logical mutex per order id, so every transition
// for a given order (synchronous confirmation, webhook delivery, admin
// cancel) runs serialized while unrelated orders proceed in parallel.
// Entries are reference-counted and dropped when the last holder releases.
type OrderLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewOrderLocks() *OrderLocks {
	return &OrderLocks{entries: make(map[int64]*lockEntry)}
}

// Acquire blocks until the order's lock is held and returns the release
// function. Callers must release exactly once.
func (l *OrderLocks) Acquire(orderID int64) (release func()) {
	l.mu.Lock()
	e, ok := l.entries[orderID]
	if !ok {
		e = &lockEntry{}
		l.entries[orderID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, orderID)
		}
		l.mu.Unlock()
	}
}
