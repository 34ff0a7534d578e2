package service

import "sync"

// orderLocks hands out one mutex per order number so the
// AWAITING_PAYMENT -> terminal transition has a single writer per order.
// Entries are reference-counted and dropped when the last holder releases,
// so the map does not grow with order history.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: map[string]*orderLock{}}
}

// Lock acquires the per-order mutex and returns its release func.
func (l *orderLocks) Lock(orderNumber string) func() {
	l.mu.Lock()
	entry, ok := l.locks[orderNumber]
	if !ok {
		entry = &orderLock{}
		l.locks[orderNumber] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, orderNumber)
		}
		l.mu.Unlock()
	}
}
