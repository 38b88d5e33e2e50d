package recovery

import (
	"github.com/hiroakis/stormdb/common"
	"github.com/hiroakis/stormdb/storage/buffer"
	"github.com/hiroakis/stormdb/storage/disk"
	"github.com/hiroakis/stormdb/storage/page"
	"github.com/hiroakis/stormdb/types"
)

// LogRecovery replays a log file against a buffer pool: Redo reapplies
// every page-mutating record not yet reflected on disk, then Undo rolls
// back whichever transactions never reached COMMIT or ABORT.
type LogRecovery struct {
	diskManager disk.DiskManager
	bpm         *buffer.BufferPoolManager

	activeTxn  map[types.TxnID]types.LSN
	lsnMapping map[types.LSN]int32
}

func NewLogRecovery(diskManager disk.DiskManager, bpm *buffer.BufferPoolManager) *LogRecovery {
	return &LogRecovery{
		diskManager: diskManager,
		bpm:         bpm,
		activeTxn:   make(map[types.TxnID]types.LSN),
		lsnMapping:  make(map[types.LSN]int32),
	}
}

// Redo scans the log file from the start in buffer-sized chunks,
// reapplying every page-mutating record whose target page hasn't
// already absorbed it (page.LSN() >= record.LSN), and records each
// transaction's most recent LSN and each LSN's file offset for Undo.
// Logging is disabled for the duration: redo must not itself get logged.
func (lr *LogRecovery) Redo() {
	wasLogging := common.EnableLogging
	common.EnableLogging = false
	defer func() { common.EnableLogging = wasLogging }()

	buf := make([]byte, common.LogBufferSize)
	var offset int32

	for lr.diskManager.ReadLog(buf, offset) {
		pos := 0
		for pos+HeaderSize <= len(buf) {
			header := DecodeHeader(buf[pos:])
			if header.Size == 0 || pos+int(header.Size) > len(buf) {
				break
			}
			record, err := Decode(buf[pos : pos+int(header.Size)])
			if err != nil {
				break
			}

			lr.lsnMapping[record.LSN] = offset + int32(pos)
			lr.trackActiveTxn(record)
			lr.applyRedo(record)

			pos += int(record.Size)
		}
		if pos == 0 {
			break
		}
		offset += int32(pos)
	}
}

func (lr *LogRecovery) trackActiveTxn(record *LogRecord) {
	switch record.Type {
	case Begin, Insert, Update, MarkDelete, ApplyDelete, RollbackDelete:
		lr.activeTxn[record.TxnID] = record.LSN
	case Commit, Abort:
		delete(lr.activeTxn, record.TxnID)
	}
}

func (lr *LogRecovery) applyRedo(record *LogRecord) {
	switch record.Type {
	case NewPage:
		pg := lr.bpm.FetchPage(record.PageID)
		pg.ResetMemory()
		pg.SetLSN(record.LSN)
		lr.bpm.UnpinPage(record.PageID, true)
	case Insert:
		lr.redoPageMutation(record.RID, record.LSN, func(pg *page.Page) {
			writeDataSlot(pg, record.RID.GetSlot(), false, record.Tuple)
		})
	case MarkDelete:
		lr.redoPageMutation(record.RID, record.LSN, func(pg *page.Page) {
			setTombstone(pg, record.RID.GetSlot(), true)
		})
	case ApplyDelete:
		lr.redoPageMutation(record.RID, record.LSN, func(pg *page.Page) {
			writeDataSlot(pg, record.RID.GetSlot(), true, nil)
		})
	case RollbackDelete:
		lr.redoPageMutation(record.RID, record.LSN, func(pg *page.Page) {
			setTombstone(pg, record.RID.GetSlot(), false)
		})
	case Update:
		lr.redoPageMutation(record.RID, record.LSN, func(pg *page.Page) {
			writeDataSlot(pg, record.RID.GetSlot(), false, record.NewTuple)
		})
	}
}

func (lr *LogRecovery) redoPageMutation(rid types.RID, lsn types.LSN, mutate func(*page.Page)) {
	pg := lr.bpm.FetchPage(rid.GetPageId())
	if pg.LSN() >= lsn {
		lr.bpm.UnpinPage(rid.GetPageId(), false)
		return
	}
	mutate(pg)
	pg.SetLSN(lsn)
	lr.bpm.UnpinPage(rid.GetPageId(), true)
}

// Undo walks every transaction still open after Redo backward through
// its prev_lsn chain, reversing INSERT (via ApplyDelete), MARKDELETE
// (via RollbackDelete) and UPDATE (swap back to the old tuple), stopping
// once it reaches that transaction's BEGIN record.
func (lr *LogRecovery) Undo() {
	for _, lastLSN := range lr.activeTxn {
		lsn := lastLSN
		for lsn != types.InvalidLSN {
			offset, ok := lr.lsnMapping[lsn]
			if !ok {
				break
			}
			record := lr.readRecordAt(offset)
			if record == nil {
				break
			}
			if record.Type == Begin {
				break
			}

			switch record.Type {
			case Insert:
				lr.mutatePage(record.RID.GetPageId(), func(pg *page.Page) {
					writeDataSlot(pg, record.RID.GetSlot(), true, nil)
				})
			case MarkDelete:
				lr.mutatePage(record.RID.GetPageId(), func(pg *page.Page) {
					setTombstone(pg, record.RID.GetSlot(), false)
				})
			case Update:
				lr.mutatePage(record.RID.GetPageId(), func(pg *page.Page) {
					writeDataSlot(pg, record.RID.GetSlot(), false, record.Tuple)
				})
			}

			lsn = record.PrevLSN
		}
	}
}

func (lr *LogRecovery) mutatePage(pageID types.PageID, mutate func(*page.Page)) {
	pg := lr.bpm.FetchPage(pageID)
	mutate(pg)
	lr.bpm.UnpinPage(pageID, true)
}

func (lr *LogRecovery) readRecordAt(offset int32) *LogRecord {
	buf := make([]byte, common.LogBufferSize)
	if !lr.diskManager.ReadLog(buf, offset) {
		return nil
	}
	if len(buf) < HeaderSize {
		return nil
	}
	header := DecodeHeader(buf)
	if header.Size == 0 || int(header.Size) > len(buf) {
		return nil
	}
	record, err := Decode(buf[:header.Size])
	if err != nil {
		return nil
	}
	return record
}
