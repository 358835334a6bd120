package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocker_SerialisesSameKey(t *testing.T) {
	locker := NewLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("chat")
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most one holder per key, got %d", maxInside)
	}
	if locker.Active() != 0 {
		t.Errorf("expected no active keys after release, got %d", locker.Active())
	}
}

func TestLocker_DifferentKeysIndependent(t *testing.T) {
	locker := NewLocker()
	unlockA := locker.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locker.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on key b blocked behind key a")
	}
	if locker.Active() != 1 {
		t.Errorf("expected one active key, got %d", locker.Active())
	}
}

func TestLocker_UnlockIsIdempotent(t *testing.T) {
	locker := NewLocker()
	unlock := locker.Lock("k")
	unlock()
	unlock()

	relock := locker.Lock("k")
	relock()
	if locker.Active() != 0 {
		t.Errorf("expected no active keys, got %d", locker.Active())
	}
}
