package reconcile

import (
	"sync"
	"testing"
)

func TestOrderLocksSerializeSameOrder(t *testing.T) {
	locks := NewOrderLocks()

	const workers = 16
	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire(1)
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Fatalf("expected at most one holder, saw %d", max)
	}
}

func TestOrderLocksIndependentOrdersDoNotBlock(t *testing.T) {
	locks := NewOrderLocks()

	release1 := locks.Acquire(1)
	defer release1()

	done := make(chan struct{})
	go func() {
		release2 := locks.Acquire(2)
		release2()
		close(done)
	}()

	<-done
}

func TestOrderLocksDropEntriesOnRelease(t *testing.T) {
	locks := NewOrderLocks()

	release := locks.Acquire(7)
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.entries) != 0 {
		t.Fatalf("expected empty lock table, got %d entries", len(locks.entries))
	}
}
