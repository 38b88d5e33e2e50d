package concurrency

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/hiroakis/stormdb/types"
)

// TransactionState is the 2PL phase a transaction is in.
type TransactionState int

const (
	Growing TransactionState = iota
	Shrinking
	Committed
	Aborted
)

func (s TransactionState) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is the client-visible handle for one unit of work: its
// lock sets, its log chain via prev_lsn, and its current 2PL state.
type Transaction struct {
	mu deadlock.Mutex

	txnID   types.TxnID
	state   TransactionState
	prevLSN types.LSN

	sharedLockSet    map[types.RID]bool
	exclusiveLockSet map[types.RID]bool
}

func NewTransaction(txnID types.TxnID) *Transaction {
	return &Transaction{
		txnID:            txnID,
		state:            Growing,
		prevLSN:          types.InvalidLSN,
		sharedLockSet:    make(map[types.RID]bool),
		exclusiveLockSet: make(map[types.RID]bool),
	}
}

func (txn *Transaction) GetTransactionID() types.TxnID { return txn.txnID }

func (txn *Transaction) GetState() TransactionState {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.state
}

func (txn *Transaction) SetState(state TransactionState) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.state = state
}

func (txn *Transaction) GetPrevLSN() types.LSN {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.prevLSN
}

func (txn *Transaction) SetPrevLSN(lsn types.LSN) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.prevLSN = lsn
}

func (txn *Transaction) AddSharedLock(rid types.RID) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.sharedLockSet[rid] = true
}

func (txn *Transaction) AddExclusiveLock(rid types.RID) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.exclusiveLockSet[rid] = true
}

func (txn *Transaction) RemoveSharedLock(rid types.RID) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	delete(txn.sharedLockSet, rid)
}

func (txn *Transaction) RemoveExclusiveLock(rid types.RID) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	delete(txn.exclusiveLockSet, rid)
}

func (txn *Transaction) IsSharedLocked(rid types.RID) bool {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.sharedLockSet[rid]
}

func (txn *Transaction) IsExclusiveLocked(rid types.RID) bool {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.exclusiveLockSet[rid]
}

// LockedRIDs returns a snapshot of every RID this transaction currently
// holds a lock on, used by the transaction manager to release them all
// on commit/abort.
func (txn *Transaction) LockedRIDs() []types.RID {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	rids := make([]types.RID, 0, len(txn.sharedLockSet)+len(txn.exclusiveLockSet))
	for rid := range txn.sharedLockSet {
		rids = append(rids, rid)
	}
	for rid := range txn.exclusiveLockSet {
		rids = append(rids, rid)
	}
	return rids
}
