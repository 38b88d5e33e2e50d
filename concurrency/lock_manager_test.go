package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hiroakis/stormdb/types"
)

func rid(slot uint32) types.RID { return types.NewRID(types.PageID(0), slot) }

func TestLockManagerSharedLocksAreCompatible(t *testing.T) {
	lm := NewLockManager(Regular)
	r := rid(1)

	t1 := NewTransaction(1)
	t2 := NewTransaction(2)

	assert.True(t, lm.LockShared(t1, r))
	assert.True(t, lm.LockShared(t2, r))
	assert.True(t, t1.IsSharedLocked(r))
	assert.True(t, t2.IsSharedLocked(r))
}

func TestLockManagerWaitDieAbortsYoungerRequester(t *testing.T) {
	lm := NewLockManager(Regular)
	r := rid(1)

	older := NewTransaction(1)
	younger := NewTransaction(2)

	assert.True(t, lm.LockExclusive(older, r))

	// younger's txn_id (2) is not less than the oldest granted holder's
	// (1), so wait-die kills it instead of blocking.
	ok := lm.LockShared(younger, r)
	assert.False(t, ok)
	assert.Equal(t, Aborted, younger.GetState())
}

func TestLockManagerYoungerHolderBlocksThenWakesOnRelease(t *testing.T) {
	lm := NewLockManager(Regular)
	r := rid(1)

	younger := NewTransaction(2)
	older := NewTransaction(1)

	assert.True(t, lm.LockExclusive(younger, r))

	granted := make(chan bool, 1)
	go func() {
		granted <- lm.LockExclusive(older, r)
	}()

	// older should block, not abort: it is strictly less than the
	// current holder's txn_id, so wait-die lets it wait.
	select {
	case <-granted:
		t.Fatal("older transaction should not have been granted yet")
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, lm.Unlock(younger, r))

	select {
	case ok := <-granted:
		assert.True(t, ok)
		assert.True(t, older.IsExclusiveLocked(r))
	case <-time.After(time.Second):
		t.Fatal("older transaction was never granted the lock")
	}
}

func TestLockManagerSharedGrantedUnconditionallyOverQueuedExclusiveWaiter(t *testing.T) {
	lm := NewLockManager(Regular)
	r := rid(1)

	holder := NewTransaction(5)
	olderExclusive := NewTransaction(1)
	newShared := NewTransaction(10)

	assert.True(t, lm.LockShared(holder, r))

	// olderExclusive (1) is strictly less than the oldest granted holder
	// (5), so wait-die lets it queue instead of aborting it.
	exclusiveGranted := make(chan bool, 1)
	go func() {
		exclusiveGranted <- lm.LockExclusive(olderExclusive, r)
	}()

	select {
	case <-exclusiveGranted:
		t.Fatal("exclusive request should have queued behind the shared holder")
	case <-time.After(50 * time.Millisecond):
	}

	// newShared arrives while the WaitList is still in SHARED mode with an
	// exclusive waiter already queued. A shared requester is granted
	// unconditionally whenever the WaitList is in SHARED state - queued
	// exclusive waiters don't gate it.
	assert.True(t, lm.LockShared(newShared, r))
	assert.True(t, newShared.IsSharedLocked(r))

	select {
	case <-exclusiveGranted:
		t.Fatal("exclusive waiter should still be queued behind both shared holders")
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, lm.Unlock(holder, r))
	assert.True(t, lm.Unlock(newShared, r))

	select {
	case ok := <-exclusiveGranted:
		assert.True(t, ok)
		assert.True(t, olderExclusive.IsExclusiveLocked(r))
	case <-time.After(time.Second):
		t.Fatal("exclusive waiter was never granted the lock")
	}
}

func TestLockManagerUpgrade(t *testing.T) {
	lm := NewLockManager(Regular)
	r := rid(1)
	txn := NewTransaction(1)

	assert.True(t, lm.LockShared(txn, r))
	assert.True(t, lm.LockUpgrade(txn, r))
	assert.False(t, txn.IsSharedLocked(r))
	assert.True(t, txn.IsExclusiveLocked(r))
}

func TestLockManagerUpgradeRequiresExistingSharedLock(t *testing.T) {
	lm := NewLockManager(Regular)
	r := rid(1)
	txn := NewTransaction(1)

	assert.False(t, lm.LockUpgrade(txn, r))
}

func TestLockManagerRegularTwoPLAllowsUnlockDuringGrowing(t *testing.T) {
	lm := NewLockManager(Regular)
	r := rid(1)
	txn := NewTransaction(1)

	assert.True(t, lm.LockExclusive(txn, r))
	assert.Equal(t, Growing, txn.GetState())

	assert.True(t, lm.Unlock(txn, r))
	assert.Equal(t, Shrinking, txn.GetState())
}

func TestLockManagerRegularTwoPLRejectsLockAfterShrinking(t *testing.T) {
	lm := NewLockManager(Regular)
	r1, r2 := rid(1), rid(2)
	txn := NewTransaction(1)

	assert.True(t, lm.LockExclusive(txn, r1))
	assert.True(t, lm.Unlock(txn, r1))
	assert.Equal(t, Shrinking, txn.GetState())

	ok := lm.LockExclusive(txn, r2)
	assert.False(t, ok)
	assert.Equal(t, Aborted, txn.GetState())
}

func TestLockManagerStrictTwoPLRejectsUnlockBeforeCommit(t *testing.T) {
	lm := NewLockManager(Strict)
	r := rid(1)
	txn := NewTransaction(1)

	assert.True(t, lm.LockExclusive(txn, r))
	assert.False(t, lm.Unlock(txn, r))
	assert.Equal(t, Growing, txn.GetState())

	txn.SetState(Committed)
	assert.True(t, lm.Unlock(txn, r))
}
