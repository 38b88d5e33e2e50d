// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package disk

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/hiroakis/stormdb/common"
	"github.com/hiroakis/stormdb/types"
)

// FileDiskManager is the file-backed implementation of DiskManager.
type FileDiskManager struct {
	db         *os.File
	fileName   string
	log        *os.File
	logName    string
	nextPageID int32
	numWrites  uint64
	size       int64
}

// NewFileDiskManager opens (or creates) dbFilename and a sibling ".log"
// file for WAL records.
func NewFileDiskManager(dbFilename string) (*FileDiskManager, error) {
	file, err := os.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}

	periodIdx := strings.LastIndex(dbFilename, ".")
	base := dbFilename
	if periodIdx >= 0 {
		base = dbFilename[:periodIdx]
	}
	logName := base + ".log"
	logFile, err := os.OpenFile(logName, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		file.Close()
		return nil, err
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, errors.New("file info error")
	}

	fileSize := fileInfo.Size()
	nPages := fileSize / common.PageSize

	return &FileDiskManager{
		db:         file,
		fileName:   dbFilename,
		log:        logFile,
		logName:    logName,
		nextPageID: int32(nPages),
		size:       fileSize,
	}, nil
}

func (d *FileDiskManager) ShutDown() {
	d.db.Close()
	d.log.Close()
}

// WritePage writes a page to the database file.
func (d *FileDiskManager) WritePage(pageID types.PageID, pageData []byte) error {
	offset := int64(pageID) * common.PageSize
	if _, err := d.db.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	bytesWritten, err := d.db.Write(pageData)
	if err != nil {
		return err
	}
	if bytesWritten != common.PageSize {
		return errors.New("bytes written not equal to page size")
	}

	atomic.AddUint64(&d.numWrites, 1)
	if offset+int64(bytesWritten) > d.size {
		d.size = offset + int64(bytesWritten)
	}

	return d.db.Sync()
}

// ReadPage reads a page from the database file. Reading a page beyond
// the end of the file (never yet written) yields a zeroed buffer,
// matching an unallocated page's on-disk contents.
func (d *FileDiskManager) ReadPage(pageID types.PageID, pageData []byte) error {
	offset := int64(pageID) * common.PageSize

	fileInfo, err := d.db.Stat()
	if err != nil {
		return errors.New("file info error")
	}

	if offset >= fileInfo.Size() {
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}

	if _, err := d.db.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	bytesRead, err := d.db.Read(pageData)
	if err != nil && err != io.EOF {
		return errors.New("I/O error while reading")
	}

	for i := bytesRead; i < common.PageSize; i++ {
		pageData[i] = 0
	}
	return nil
}

// AllocatePage hands out a fresh page id. Real space reclamation on
// DeallocatePage (a free-space bitmap) is not implemented; ids are
// never reused.
func (d *FileDiskManager) AllocatePage() types.PageID {
	id := atomic.AddInt32(&d.nextPageID, 1) - 1
	return types.PageID(id)
}

func (d *FileDiskManager) DeallocatePage(pageID types.PageID) {
	// no-op: needs a free-space bitmap in a header page to do for real.
}

func (d *FileDiskManager) GetNumWrites() uint64 {
	return atomic.LoadUint64(&d.numWrites)
}

func (d *FileDiskManager) Size() int64 {
	return d.size
}

// WriteLog appends log_data to the log file and performs a sequential,
// synchronous write: the call does not return until the bytes are
// durable, which is what LogManager.FlushNowBlocking relies on.
func (d *FileDiskManager) WriteLog(logData []byte) error {
	if len(logData) == 0 {
		return nil
	}
	if _, err := d.log.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if _, err := d.log.Write(logData); err != nil {
		return err
	}
	return d.log.Sync()
}

// ReadLog always reads from the given offset, performing a sequential
// read. Returns false once offset is at or past the end of the log file.
func (d *FileDiskManager) ReadLog(logData []byte, offset int32) bool {
	fileSize := d.logFileSize()
	if int64(offset) >= fileSize {
		return false
	}

	if _, err := d.log.Seek(int64(offset), io.SeekStart); err != nil {
		return false
	}

	readBytes, err := d.log.Read(logData)
	if err != nil && err != io.EOF {
		return false
	}
	for i := readBytes; i < len(logData); i++ {
		logData[i] = 0
	}
	return true
}

func (d *FileDiskManager) logFileSize() int64 {
	fileInfo, err := d.log.Stat()
	if err != nil {
		return -1
	}
	return fileInfo.Size()
}

// RemoveDBFile deletes the backing database file. Call only after ShutDown.
func (d *FileDiskManager) RemoveDBFile() {
	os.Remove(d.fileName)
}

// RemoveLogFile deletes the backing log file. Call only after ShutDown.
func (d *FileDiskManager) RemoveLogFile() {
	os.Remove(d.logName)
}
