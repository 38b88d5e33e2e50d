package concurrency

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/hiroakis/stormdb/common"
	"github.com/hiroakis/stormdb/recovery"
	"github.com/hiroakis/stormdb/types"
)

// TransactionManager begins, commits and aborts transactions, driving
// the lock manager (lock release) and log manager (BEGIN/COMMIT/ABORT
// records) around each.
type TransactionManager struct {
	mu deadlock.Mutex

	nextTxnID   types.TxnID
	lockManager *LockManager
	logManager  *recovery.LogManager

	// globalTxnLatch blocks new transactions from starting while a
	// checkpoint (or other global operation) holds it for write.
	globalTxnLatch deadlock.RWMutex

	txnMap map[types.TxnID]*Transaction
}

func NewTransactionManager(lockManager *LockManager, logManager *recovery.LogManager) *TransactionManager {
	return &TransactionManager{
		lockManager: lockManager,
		logManager:  logManager,
		txnMap:      make(map[types.TxnID]*Transaction),
	}
}

// Begin starts a new transaction (or accepts an already-constructed one
// for callers that need to control its txn id), records a BEGIN log
// record when logging is enabled, and registers it for lookup.
func (tm *TransactionManager) Begin(txn *Transaction) *Transaction {
	tm.globalTxnLatch.RLock()

	if txn == nil {
		tm.mu.Lock()
		txn = NewTransaction(tm.nextTxnID)
		tm.nextTxnID++
		tm.mu.Unlock()
	}

	if tm.logManager != nil && common.EnableLogging {
		record := recovery.NewBeginRecord(txn.GetTransactionID(), txn.GetPrevLSN())
		lsn := tm.logManager.AppendLogRecord(record)
		txn.SetPrevLSN(lsn)
	}

	tm.mu.Lock()
	tm.txnMap[txn.GetTransactionID()] = txn
	tm.mu.Unlock()

	return txn
}

// GetTransaction looks up a still-tracked transaction by id.
func (tm *TransactionManager) GetTransaction(txnID types.TxnID) (*Transaction, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	txn, ok := tm.txnMap[txnID]
	return txn, ok
}

// Commit marks txn committed, appends a COMMIT record and forces it
// durable, releases every lock it held, and releases the global latch.
func (tm *TransactionManager) Commit(txn *Transaction) {
	txn.SetState(Committed)

	if tm.logManager != nil && common.EnableLogging {
		record := recovery.NewCommitRecord(txn.GetTransactionID(), txn.GetPrevLSN())
		lsn := tm.logManager.AppendLogRecord(record)
		txn.SetPrevLSN(lsn)
		tm.logManager.FlushNowBlocking(lsn)
	}

	tm.releaseLocks(txn)
	tm.globalTxnLatch.RUnlock()
}

// Abort marks txn aborted, appends an ABORT record, releases its locks,
// and releases the global latch. Undoing the transaction's writes is
// recovery's job when driven from the log, not this call's.
func (tm *TransactionManager) Abort(txn *Transaction) {
	txn.SetState(Aborted)

	if tm.logManager != nil && common.EnableLogging {
		record := recovery.NewAbortRecord(txn.GetTransactionID(), txn.GetPrevLSN())
		lsn := tm.logManager.AppendLogRecord(record)
		txn.SetPrevLSN(lsn)
	}

	tm.releaseLocks(txn)
	tm.globalTxnLatch.RUnlock()
}

// BlockAllTransactions prevents any new transaction from starting,
// until ResumeTransactions is called. Used around operations that need
// a consistent point with no concurrent writers (e.g. a checkpoint).
func (tm *TransactionManager) BlockAllTransactions() { tm.globalTxnLatch.Lock() }

// ResumeTransactions releases the block taken by BlockAllTransactions.
func (tm *TransactionManager) ResumeTransactions() { tm.globalTxnLatch.Unlock() }

func (tm *TransactionManager) releaseLocks(txn *Transaction) {
	for _, rid := range txn.LockedRIDs() {
		tm.lockManager.Unlock(txn, rid)
	}
}
