package directory

import (
	"fmt"

	"github.com/sarchlab/cohsim/idgen"
)

// A Lock serializes the transactions on one (set, way).
type Lock struct {
	held    bool
	holder  idgen.ID
	waiters []idgen.ID
}

// Held tells if the lock is taken.
func (l *Lock) Held() bool {
	return l.held
}

// Holder returns the ID of the transaction holding the lock.
func (l *Lock) Holder() idgen.ID {
	return l.holder
}

// NumWaiters returns the number of queued transactions.
func (l *Lock) NumWaiters() int {
	return len(l.waiters)
}

// TryLock takes the lock for holder if it is free.
func (l *Lock) TryLock(holder idgen.ID) bool {
	if l.held {
		return false
	}

	l.held = true
	l.holder = holder

	return true
}

// Wait queues a transaction that will be woken up on the next unlock.
func (l *Lock) Wait(waiter idgen.ID) {
	l.waiters = append(l.waiters, waiter)
}

// Unlock frees the lock and returns every queued transaction in arrival
// order. The caller wakes them up; the first to run takes the lock and the
// others queue again.
func (l *Lock) Unlock() []idgen.ID {
	if !l.held {
		panic("directory: unlocking a lock that is not held")
	}

	woken := l.waiters
	l.held = false
	l.holder = 0
	l.waiters = nil

	return woken
}

// A LockTable holds one lock per (set, way).
type LockTable struct {
	numSets int
	numWays int
	locks   []Lock
}

// NewLockTable creates a table with all locks free.
func NewLockTable(numSets, numWays int) *LockTable {
	return &LockTable{
		numSets: numSets,
		numWays: numWays,
		locks:   make([]Lock, numSets*numWays),
	}
}

// Lock returns the lock of (setID, wayID).
func (t *LockTable) Lock(setID, wayID int) *Lock {
	if setID < 0 || setID >= t.numSets || wayID < 0 || wayID >= t.numWays {
		panic(fmt.Sprintf("directory: lock (%d, %d) out of range",
			setID, wayID))
	}

	return &t.locks[setID*t.numWays+wayID]
}

// NumHeld counts the locks currently taken.
func (t *LockTable) NumHeld() int {
	n := 0

	for i := range t.locks {
		if t.locks[i].held {
			n++
		}
	}

	return n
}
