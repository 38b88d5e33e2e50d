package disk

import (
	"errors"
	"sync/atomic"

	"github.com/dsnet/golib/memfile"
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/hiroakis/stormdb/common"
	"github.com/hiroakis/stormdb/types"
)

// MemoryDiskManager is an in-memory DiskManager backed by
// github.com/dsnet/golib/memfile, used by tests that want buffer-pool
// eviction and ARIES recovery exercised without touching the
// filesystem.
type MemoryDiskManager struct {
	db  *memfile.File
	log *memfile.File

	dbMutex  deadlock.Mutex
	logMutex deadlock.Mutex

	nextPageID int32
	numWrites  uint64
	size       int64
	logSize    int64
}

func NewMemoryDiskManager() *MemoryDiskManager {
	return &MemoryDiskManager{
		db:  memfile.New(make([]byte, 0)),
		log: memfile.New(make([]byte, 0)),
	}
}

func (d *MemoryDiskManager) ShutDown() {
	// nothing to close for an in-memory file.
}

func (d *MemoryDiskManager) WritePage(pageID types.PageID, pageData []byte) error {
	d.dbMutex.Lock()
	defer d.dbMutex.Unlock()

	offset := int64(pageID) * common.PageSize
	if _, err := d.db.WriteAt(pageData, offset); err != nil {
		return err
	}

	atomic.AddUint64(&d.numWrites, 1)
	if end := offset + int64(len(pageData)); end > d.size {
		d.size = end
	}
	return nil
}

func (d *MemoryDiskManager) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbMutex.Lock()
	defer d.dbMutex.Unlock()

	offset := int64(pageID) * common.PageSize
	if offset >= d.size {
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}

	if _, err := d.db.ReadAt(pageData, offset); err != nil {
		return errors.New("I/O error while reading")
	}
	return nil
}

func (d *MemoryDiskManager) AllocatePage() types.PageID {
	id := atomic.AddInt32(&d.nextPageID, 1) - 1
	return types.PageID(id)
}

func (d *MemoryDiskManager) DeallocatePage(pageID types.PageID) {
	// no-op: needs a free-space bitmap to do for real.
}

func (d *MemoryDiskManager) GetNumWrites() uint64 {
	return atomic.LoadUint64(&d.numWrites)
}

func (d *MemoryDiskManager) Size() int64 {
	d.dbMutex.Lock()
	defer d.dbMutex.Unlock()
	return d.size
}

// WriteLog appends to the in-memory log file, unlike the historical
// virtual disk manager this is grounded on (which stubbed log writes
// out entirely and so could never exercise recovery).
func (d *MemoryDiskManager) WriteLog(logData []byte) error {
	if len(logData) == 0 {
		return nil
	}
	d.logMutex.Lock()
	defer d.logMutex.Unlock()

	if _, err := d.log.WriteAt(logData, d.logSize); err != nil {
		return err
	}
	d.logSize += int64(len(logData))
	return nil
}

func (d *MemoryDiskManager) ReadLog(logData []byte, offset int32) bool {
	d.logMutex.Lock()
	defer d.logMutex.Unlock()

	if int64(offset) >= d.logSize {
		return false
	}

	n, err := d.log.ReadAt(logData, int64(offset))
	if err != nil && n == 0 {
		return false
	}
	for i := n; i < len(logData); i++ {
		logData[i] = 0
	}
	return true
}

func (d *MemoryDiskManager) RemoveDBFile() {}
func (d *MemoryDiskManager) RemoveLogFile() {}
