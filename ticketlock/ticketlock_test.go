package ticketlock

import (
	"sync"
	"testing"

	"rvos/level"
)

func TestLockUnlockRoundTrip(t *testing.T) {
	lk := New[int, level.Epilogue, level.Driver](0)
	guard, lower := lk.Lock(level.Epilogue{})
	*guard.Value() = 42
	upper := guard.Unlock(lower)
	_ = upper
	if lk.value != 42 {
		t.Fatalf("value not retained across unlock: got %d", lk.value)
	}
}

func TestConcurrentIncrement(t *testing.T) {
	lk := New[int, level.Epilogue, level.Driver](0)
	var wg sync.WaitGroup
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard, lower := lk.Lock(level.Epilogue{})
			v := guard.Value()
			*v++
			guard.Unlock(lower)
		}()
	}
	wg.Wait()
	if lk.value != n {
		t.Fatalf("lost updates under contention: got %d, want %d", lk.value, n)
	}
}

func TestNewRejectsAscendingPair(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected New to panic for an ascending level pair")
		}
	}()
	New[int, level.Driver, level.Epilogue](0)
}

func TestTryLockFailsWhenHeld(t *testing.T) {
	lk := New[int, level.Epilogue, level.Driver](0)
	guard, lower := lk.Lock(level.Epilogue{})
	_, _, ok := lk.TryLock(level.Epilogue{})
	if ok {
		t.Fatal("TryLock should fail while the lock is held")
	}
	guard.Unlock(lower)
	g2, l2, ok2 := lk.TryLock(level.Epilogue{})
	if !ok2 {
		t.Fatal("TryLock should succeed once released")
	}
	g2.Unlock(l2)
}
