package service

import (
	"sync"
	"testing"
)

func TestOrderLocksMutualExclusion(t *testing.T) {
	locks := newOrderLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("FEST-SAME")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("lost updates under the per-order lock: %d", counter)
	}
}

func TestOrderLocksReleaseDropsEntries(t *testing.T) {
	locks := newOrderLocks()

	unlock := locks.Lock("FEST-A")
	unlock()
	unlock2 := locks.Lock("FEST-B")
	unlock2()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.locks) != 0 {
		t.Fatalf("lock registry leaked %d entries", len(locks.locks))
	}
}

func TestOrderLocksIndependentOrders(t *testing.T) {
	locks := newOrderLocks()

	unlockA := locks.Lock("FEST-A")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("FEST-B")
		unlockB()
		close(done)
	}()

	<-done // must not block on the unrelated order's lock
}
