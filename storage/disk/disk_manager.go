package disk

import (
	"github.com/hiroakis/stormdb/types"
)

// DiskManager is responsible for reading and writing pages and the log
// file by offset. It is the byte-addressable page store the rest of the
// kernel is built on top of.
type DiskManager interface {
	ReadPage(types.PageID, []byte) error
	WritePage(types.PageID, []byte) error
	AllocatePage() types.PageID
	DeallocatePage(types.PageID)

	// WriteLog appends data to the log file and blocks until it is durable.
	WriteLog(data []byte) error
	// ReadLog reads len(data) bytes from the log file starting at offset.
	// It returns false once offset reaches the end of the log file.
	ReadLog(data []byte, offset int32) bool

	GetNumWrites() uint64
	ShutDown()
	Size() int64
}
