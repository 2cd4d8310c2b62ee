package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAcquire_SequentialReacquire(t *testing.T) {
	locker := NewAccountLocker(time.Second)
	accountID := uuid.New()

	for i := 0; i < 3; i++ {
		lease, err := locker.Acquire(context.Background(), accountID)
		if err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
		lease.Release()
	}
}

func TestAcquire_MutualExclusion(t *testing.T) {
	locker := NewAccountLocker(5 * time.Second)
	accountID := uuid.New()

	var mu sync.Mutex
	var inCritical int
	var maxInCritical int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := locker.Acquire(context.Background(), accountID)
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			defer lease.Release()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Fatalf("expected at most one holder in the critical section, saw %d", maxInCritical)
	}
}

func TestAcquire_OppositeOrderDoesNotDeadlock(t *testing.T) {
	locker := NewAccountLocker(5 * time.Second)
	a := uuid.New()
	b := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			lease, err := locker.Acquire(context.Background(), a, b)
			if err != nil {
				t.Errorf("acquire (a,b) failed: %v", err)
				return
			}
			lease.Release()
		}()
		go func() {
			defer wg.Done()
			lease, err := locker.Acquire(context.Background(), b, a)
			if err != nil {
				t.Errorf("acquire (b,a) failed: %v", err)
				return
			}
			lease.Release()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("lock acquisitions did not finish; likely deadlocked")
	}
}

func TestAcquire_TimesOutWhileHeld(t *testing.T) {
	locker := NewAccountLocker(50 * time.Millisecond)
	accountID := uuid.New()

	held, err := locker.Acquire(context.Background(), accountID)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer held.Release()

	_, err = locker.Acquire(context.Background(), accountID)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestAcquire_TimeoutReleasesPartialSet(t *testing.T) {
	locker := NewAccountLocker(50 * time.Millisecond)
	free := uuid.New()
	held := uuid.New()

	blocker, err := locker.Acquire(context.Background(), held)
	if err != nil {
		t.Fatalf("blocker acquire failed: %v", err)
	}

	// This acquisition gets `free` but must give it back when `held` times out.
	if _, err := locker.Acquire(context.Background(), free, held); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	lease, err := locker.Acquire(context.Background(), free)
	if err != nil {
		t.Fatalf("free account should be acquirable after timeout, got %v", err)
	}
	lease.Release()
	blocker.Release()
}

func TestAcquire_ContextCancelled(t *testing.T) {
	locker := NewAccountLocker(5 * time.Second)
	accountID := uuid.New()

	held, err := locker.Acquire(context.Background(), accountID)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := locker.Acquire(ctx, accountID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAcquire_DuplicateIDsCollapse(t *testing.T) {
	locker := NewAccountLocker(time.Second)
	accountID := uuid.New()

	lease, err := locker.Acquire(context.Background(), accountID, accountID)
	if err != nil {
		t.Fatalf("acquire with duplicate ids failed: %v", err)
	}
	lease.Release()

	// The table must be empty again; a fresh acquire proves nothing leaked.
	lease, err = locker.Acquire(context.Background(), accountID)
	if err != nil {
		t.Fatalf("reacquire after duplicate-id lease failed: %v", err)
	}
	lease.Release()
}

func TestLease_ReleaseIsIdempotent(t *testing.T) {
	locker := NewAccountLocker(time.Second)
	accountID := uuid.New()

	lease, err := locker.Acquire(context.Background(), accountID)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	lease.Release()
	lease.Release()

	again, err := locker.Acquire(context.Background(), accountID)
	if err != nil {
		t.Fatalf("reacquire after double release failed: %v", err)
	}
	again.Release()
}

func TestAcquire_EmptySetIsNoop(t *testing.T) {
	locker := NewAccountLocker(time.Second)
	lease, err := locker.Acquire(context.Background())
	if err != nil {
		t.Fatalf("empty acquire failed: %v", err)
	}
	lease.Release()
}
