package recovery

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/hiroakis/stormdb/common"
	"github.com/hiroakis/stormdb/storage/disk"
	"github.com/hiroakis/stormdb/types"
)

// LogManager buffers serialized log records and hands them to a
// background flusher goroutine, swapping an append buffer and a flush
// buffer rather than writing to disk on every AppendLogRecord call.
type LogManager struct {
	appendMu deadlock.Mutex // serializes AppendLogRecord callers
	swapMu   deadlock.Mutex // protects the buffer swap point

	offset        uint32
	bufferLSN     types.LSN
	nextLSN       types.LSN
	persistentLSN types.LSN

	logBuffer   []byte
	flushBuffer []byte

	diskManager disk.DiskManager

	stop chan struct{}
}

func NewLogManager(diskManager disk.DiskManager) *LogManager {
	return &LogManager{
		persistentLSN: types.InvalidLSN,
		logBuffer:     make([]byte, common.LogBufferSize),
		flushBuffer:   make([]byte, common.LogBufferSize),
		diskManager:   diskManager,
	}
}

func (lm *LogManager) GetNextLSN() types.LSN       { return lm.nextLSN }
func (lm *LogManager) GetPersistentLSN() types.LSN { return lm.persistentLSN }
func (lm *LogManager) IsEnabledLogging() bool      { return common.EnableLogging }

// AppendLogRecord assigns the record its LSN, serializes it into the
// append buffer, and forces a flush-and-swap first if it wouldn't fit.
func (lm *LogManager) AppendLogRecord(record *LogRecord) types.LSN {
	lm.appendMu.Lock()
	defer lm.appendMu.Unlock()

	if common.LogBufferSize-lm.offset < record.Size {
		lm.Flush()
	}

	record.LSN = lm.nextLSN
	lm.nextLSN++

	record.Encode(lm.logBuffer[lm.offset:])
	lm.bufferLSN = record.LSN
	lm.offset += record.Size

	return record.LSN
}

// Flush swaps the append buffer into the flush buffer and writes it to
// disk. Called by the background flusher on each timer tick, directly by
// AppendLogRecord when the append buffer is full, and by
// FlushNowBlocking.
func (lm *LogManager) Flush() {
	lm.swapMu.Lock()
	lsn := lm.bufferLSN
	offset := lm.offset
	lm.offset = 0
	lm.logBuffer, lm.flushBuffer = lm.flushBuffer, lm.logBuffer
	lm.swapMu.Unlock()

	if offset > 0 {
		lm.diskManager.WriteLog(lm.flushBuffer[:offset])
	}
	lm.persistentLSN = lsn
}

// RunFlushThread starts the background flusher goroutine and sets the
// package-wide logging-enabled flag.
func (lm *LogManager) RunFlushThread() {
	common.EnableLogging = true
	lm.stop = make(chan struct{})
	go lm.flushLoop(lm.stop)
}

// StopFlushThread stops the background flusher and clears the
// logging-enabled flag.
func (lm *LogManager) StopFlushThread() {
	common.EnableLogging = false
	if lm.stop != nil {
		close(lm.stop)
		lm.stop = nil
	}
}

func (lm *LogManager) flushLoop(stop chan struct{}) {
	ticker := time.NewTicker(common.LogTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			lm.Flush()
		}
	}
}

// FlushNowBlocking forces every record up to and including targetLSN
// durable before returning: one round drains whatever is currently in
// the append buffer (which, assigned LSNs being monotonic, already
// covers targetLSN by the time a caller holds it); a second round
// catches the buffer that was just swapped in, matching spec's "two
// rounds" requirement.
func (lm *LogManager) FlushNowBlocking(targetLSN types.LSN) {
	lm.Flush()
	lm.Flush()
}
