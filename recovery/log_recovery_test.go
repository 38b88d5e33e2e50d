package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hiroakis/stormdb/storage/buffer"
	"github.com/hiroakis/stormdb/storage/disk"
	"github.com/hiroakis/stormdb/types"
)

// TestLogRecoveryRedoThenUndoEmptiesUncommittedTransaction covers an
// uncommitted transaction that crashed mid-write: {BEGIN t, INSERT t
// k1, INSERT t k2} with no COMMIT. After Redo reapplies both inserts
// and Undo rolls the transaction back, both slots must be tombstoned.
func TestLogRecoveryRedoThenUndoEmptiesUncommittedTransaction(t *testing.T) {
	dm := disk.NewMemoryDiskManager()
	defer dm.ShutDown()

	bpm := buffer.NewBufferPoolManager(10, dm, nil)
	dataPage := bpm.NewPage()
	pageID := dataPage.ID()
	assert.True(t, bpm.FlushPage(pageID))
	assert.NoError(t, bpm.UnpinPage(pageID, false))

	lm := NewLogManager(dm)
	txnID := types.TxnID(7)

	beginRecord := NewBeginRecord(txnID, types.InvalidLSN)
	lsn0 := lm.AppendLogRecord(beginRecord)

	rid1 := types.NewRID(pageID, 0)
	insert1 := NewInsertRecord(txnID, lsn0, rid1, []byte("hello"))
	lsn1 := lm.AppendLogRecord(insert1)

	rid2 := types.NewRID(pageID, 1)
	insert2 := NewInsertRecord(txnID, lsn1, rid2, []byte("world"))
	lm.AppendLogRecord(insert2)

	lm.Flush()

	lr := NewLogRecovery(dm, bpm)
	lr.Redo()

	pg := bpm.FetchPage(pageID)
	tombstone, tuple := readDataSlot(pg, rid1.GetSlot())
	assert.False(t, tombstone)
	assert.Equal(t, []byte("hello"), tuple)
	tombstone, tuple = readDataSlot(pg, rid2.GetSlot())
	assert.False(t, tombstone)
	assert.Equal(t, []byte("world"), tuple)
	assert.NoError(t, bpm.UnpinPage(pageID, false))

	lr.Undo()

	pg = bpm.FetchPage(pageID)
	tombstone, _ = readDataSlot(pg, rid1.GetSlot())
	assert.True(t, tombstone)
	tombstone, _ = readDataSlot(pg, rid2.GetSlot())
	assert.True(t, tombstone)
	assert.NoError(t, bpm.UnpinPage(pageID, false))
}

// TestLogRecoveryRedoSkipsAlreadyDurablePages confirms the LSN gate: a
// page whose LSN already covers a record is left untouched by
// Redo rather than reapplied.
func TestLogRecoveryRedoSkipsAlreadyDurablePages(t *testing.T) {
	dm := disk.NewMemoryDiskManager()
	defer dm.ShutDown()

	bpm := buffer.NewBufferPoolManager(10, dm, nil)
	dataPage := bpm.NewPage()
	pageID := dataPage.ID()

	txnID := types.TxnID(1)
	rid := types.NewRID(pageID, 0)

	lm := NewLogManager(dm)
	begin := NewBeginRecord(txnID, types.InvalidLSN)
	lsn0 := lm.AppendLogRecord(begin)
	insert := NewInsertRecord(txnID, lsn0, rid, []byte("original"))
	lsn1 := lm.AppendLogRecord(insert)
	commit := NewCommitRecord(txnID, lsn1)
	lm.AppendLogRecord(commit)
	lm.Flush()

	writeDataSlot(dataPage, rid.GetSlot(), false, []byte("original"))
	dataPage.SetLSN(lsn1)
	assert.NoError(t, bpm.UnpinPage(pageID, true))

	lr := NewLogRecovery(dm, bpm)
	lr.Redo()
	lr.Undo()

	pg := bpm.FetchPage(pageID)
	tombstone, tuple := readDataSlot(pg, rid.GetSlot())
	assert.False(t, tombstone)
	assert.Equal(t, []byte("original"), tuple)
	assert.NoError(t, bpm.UnpinPage(pageID, false))
}
