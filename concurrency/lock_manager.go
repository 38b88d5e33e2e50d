package concurrency

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/hiroakis/stormdb/common"
	"github.com/hiroakis/stormdb/types"
)

// TwoPLMode selects when Unlock is allowed to succeed.
type TwoPLMode int

const (
	Regular TwoPLMode = iota
	Strict
)

// LockMode is the mode a RID is held or requested in.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

// waiter is one blocked lock request, queued FIFO behind the current
// holders of a RID. signal is closed by whichever call grants it.
type waiter struct {
	txnID  types.TxnID
	mode   LockMode
	signal chan struct{}
}

// waitList is the per-RID lock state: the largest granted txn_id, i.e.
// the youngest holder (field oldest, the wait-die threshold), the mode everyone currently holding it is in,
// the set of granted holders, and a FIFO of blocked requesters.
type waitList struct {
	oldest  types.TxnID
	mode    LockMode
	granted map[types.TxnID]bool
	waiters []*waiter
}

// LockManager serializes shared/exclusive access to RIDs across
// transactions using wait-die deadlock prevention: a requester that is
// younger than every current holder dies (aborts) instead of waiting,
// so the wait-for graph can never cycle.
type LockManager struct {
	mu       deadlock.Mutex
	mode     TwoPLMode
	lockTable map[types.RID]*waitList
}

func NewLockManager(mode TwoPLMode) *LockManager {
	return &LockManager{
		mode:      mode,
		lockTable: make(map[types.RID]*waitList),
	}
}

// LockShared acquires rid in shared mode for txn. If rid is held
// exclusively, txn blocks when it is older than the holder, or is
// aborted when it is younger, per wait-die. Returns false if txn cannot proceed (already
// aborted/committed, or SHRINKING under strict/plain 2PL, or aborted by
// wait-die).
func (lm *LockManager) LockShared(txn *Transaction, rid types.RID) bool {
	lm.mu.Lock()

	if !lm.checkGrowing(txn) {
		lm.mu.Unlock()
		return false
	}

	wl, ok := lm.lockTable[rid]
	if !ok {
		lm.lockTable[rid] = &waitList{
			oldest:  txn.GetTransactionID(),
			mode:    Shared,
			granted: map[types.TxnID]bool{txn.GetTransactionID(): true},
		}
		lm.mu.Unlock()
		txn.AddSharedLock(rid)
		return true
	}

	if wl.mode == Shared {
		wl.granted[txn.GetTransactionID()] = true
		if txn.GetTransactionID() > wl.oldest {
			wl.oldest = txn.GetTransactionID()
		}
		lm.mu.Unlock()
		txn.AddSharedLock(rid)
		return true
	}

	// Exclusive holder: wait-die against the oldest granted holder.
	if txn.GetTransactionID() >= wl.oldest {
		txn.SetState(Aborted)
		lm.mu.Unlock()
		return false
	}

	w := &waiter{txnID: txn.GetTransactionID(), mode: Shared, signal: make(chan struct{})}
	wl.waiters = append(wl.waiters, w)
	lm.mu.Unlock()

	<-w.signal
	txn.AddSharedLock(rid)
	return true
}

// LockExclusive acquires rid in exclusive mode for txn. Any existing
// WaitList, whether shared or exclusive, forces the wait-die check.
func (lm *LockManager) LockExclusive(txn *Transaction, rid types.RID) bool {
	lm.mu.Lock()

	if !lm.checkGrowing(txn) {
		lm.mu.Unlock()
		return false
	}

	wl, ok := lm.lockTable[rid]
	if !ok {
		lm.lockTable[rid] = &waitList{
			oldest:  txn.GetTransactionID(),
			mode:    Exclusive,
			granted: map[types.TxnID]bool{txn.GetTransactionID(): true},
		}
		lm.mu.Unlock()
		txn.AddExclusiveLock(rid)
		return true
	}

	if txn.GetTransactionID() >= wl.oldest {
		txn.SetState(Aborted)
		lm.mu.Unlock()
		return false
	}

	w := &waiter{txnID: txn.GetTransactionID(), mode: Exclusive, signal: make(chan struct{})}
	wl.waiters = append(wl.waiters, w)
	lm.mu.Unlock()

	<-w.signal
	txn.AddExclusiveLock(rid)
	return true
}

// LockUpgrade upgrades txn's shared lock on rid to exclusive. Only
// valid if txn currently holds rid in shared mode. Implemented as
// Unlock followed by LockExclusive, with txn's state restored after the
// Unlock so a GROWING txn is not moved to SHRINKING by the upgrade:
// either both succeed, or txn is left aborted by the wait-die check
// inside LockExclusive.
func (lm *LockManager) LockUpgrade(txn *Transaction, rid types.RID) bool {
	if !txn.IsSharedLocked(rid) {
		return false
	}
	state := txn.GetState()
	if !lm.Unlock(txn, rid) {
		return false
	}
	txn.SetState(state)
	return lm.LockExclusive(txn, rid)
}

// Unlock releases txn's lock on rid. Under Strict 2PL this only
// succeeds once txn has committed or aborted; under Regular 2PL it is
// allowed from GROWING (which transitions the txn to SHRINKING), from
// SHRINKING, and once the txn has committed or aborted.
func (lm *LockManager) Unlock(txn *Transaction, rid types.RID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	state := txn.GetState()
	if lm.mode == Strict {
		if state != Committed && state != Aborted {
			return false
		}
	} else {
		switch state {
		case Growing:
			txn.SetState(Shrinking)
		case Shrinking, Committed, Aborted:
		default:
			return false
		}
	}

	wl, ok := lm.lockTable[rid]
	if !ok {
		return false
	}
	common.SH_Assert(wl.granted[txn.GetTransactionID()], "unlocking a rid this txn was never granted")
	common.ShPrintf(common.DEBUG_INFO_DETAIL, "Unlock: txn=%d rid=%v mode=%d", txn.GetTransactionID(), rid, wl.mode)

	delete(wl.granted, txn.GetTransactionID())
	txn.RemoveSharedLock(rid)
	txn.RemoveExclusiveLock(rid)

	if len(wl.granted) > 0 {
		return true
	}

	if len(wl.waiters) == 0 {
		delete(lm.lockTable, rid)
		return true
	}

	head := wl.waiters[0]
	wl.waiters = wl.waiters[1:]
	wl.mode = head.mode
	wl.granted = map[types.TxnID]bool{head.txnID: true}
	wl.oldest = head.txnID
	close(head.signal)
	return true
}

func (lm *LockManager) checkGrowing(txn *Transaction) bool {
	switch txn.GetState() {
	case Aborted, Committed:
		return false
	case Shrinking:
		txn.SetState(Aborted)
		return false
	default:
		return true
	}
}
