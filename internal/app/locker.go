/**
 * @description
 * This file implements the account lock coordinator. Any operation that reads an
 * account's available balance and then writes a payment affecting that balance must
 * hold the account's lock for the entire read-then-write span; transfers hold both
 * account locks. The coordinator is the single place multi-account acquisition
 * happens, so the deadlock-avoidance ordering cannot be bypassed by callers.
 *
 * @notes
 * - Locks for multiple accounts are always taken in byte order of the account UUIDs,
 *   regardless of request order. Two transfers A→B and B→A therefore contend on the
 *   same first lock instead of deadlocking.
 * - Acquisition waits are bounded. A caller that cannot get its full lock set within
 *   the configured timeout gets ErrLockTimeout and holds nothing.
 * - Lock entries are reference counted and removed when the last waiter leaves, so
 *   the lock table does not grow with the number of accounts ever touched.
 */

package app

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when the required account locks could not all be
// acquired within the coordinator's wait bound.
var ErrLockTimeout = errors.New("timed out waiting for account locks")

const defaultLockTimeout = 5 * time.Second

type accountLock struct {
	sem  chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

// AccountLocker hands out scoped, multi-account exclusive leases.
type AccountLocker struct {
	mu      sync.Mutex
	locks   map[uuid.UUID]*accountLock
	timeout time.Duration
}

// NewAccountLocker creates a coordinator with the given acquisition wait bound.
// A non-positive timeout falls back to the default.
func NewAccountLocker(timeout time.Duration) *AccountLocker {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &AccountLocker{
		locks:   make(map[uuid.UUID]*accountLock),
		timeout: timeout,
	}
}

// Lease is an exclusive grant over a set of accounts. Release must be called on
// every exit path; it is safe to call more than once.
type Lease struct {
	locker  *AccountLocker
	ids     []uuid.UUID
	release sync.Once
}

// Release returns all locks held by the lease.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.release.Do(func() {
		l.locker.releaseAll(l.ids)
	})
}

// Acquire obtains exclusive access to every given account. Duplicate ids are
// collapsed; the empty set yields a no-op lease. The wait bound covers the whole
// acquisition, not each lock individually.
func (l *AccountLocker) Acquire(ctx context.Context, accountIDs ...uuid.UUID) (*Lease, error) {
	ordered := orderedUnique(accountIDs)

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	acquired := make([]uuid.UUID, 0, len(ordered))
	for _, id := range ordered {
		sem := l.checkout(id)
		select {
		case sem <- struct{}{}:
			acquired = append(acquired, id)
		case <-ctx.Done():
			l.checkin(id)
			l.releaseAll(acquired)
			return nil, ctx.Err()
		case <-timer.C:
			l.checkin(id)
			l.releaseAll(acquired)
			return nil, ErrLockTimeout
		}
	}
	return &Lease{locker: l, ids: ordered}, nil
}

// checkout returns the semaphore for an account, creating the entry on first use.
func (l *AccountLocker) checkout(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &accountLock{sem: make(chan struct{}, 1)}
		l.locks[id] = entry
	}
	entry.refs++
	return entry.sem
}

// checkin drops one reference to an account's lock entry, removing it when unused.
func (l *AccountLocker) checkin(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, id)
	}
}

func (l *AccountLocker) releaseAll(held []uuid.UUID) {
	// Release in reverse acquisition order.
	for i := len(held) - 1; i >= 0; i-- {
		id := held[i]
		l.mu.Lock()
		entry := l.locks[id]
		l.mu.Unlock()
		<-entry.sem
		l.checkin(id)
	}
}

// orderedUnique sorts account ids into the coordinator's total order and drops
// duplicates. The order is the lexicographic byte order of the raw UUIDs.
func orderedUnique(ids []uuid.UUID) []uuid.UUID {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})
	unique := make([]uuid.UUID, 0, len(ordered))
	for i, id := range ordered {
		if i == 0 || id != ordered[i-1] {
			unique = append(unique, id)
		}
	}
	return unique
}
