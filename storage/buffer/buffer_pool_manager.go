// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	"errors"

	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/hiroakis/stormdb/common"
	"github.com/hiroakis/stormdb/container/hash"
	"github.com/hiroakis/stormdb/storage/disk"
	"github.com/hiroakis/stormdb/storage/page"
	"github.com/hiroakis/stormdb/types"
)

// pageTableBucketSize bounds how many PageID->FrameID pairs the page
// table's extendible hash packs per bucket before splitting.
const pageTableBucketSize = 4

func hashPageID(id types.PageID) uint32 {
	return hash.HashInt32(int32(id))
}

// logFlusher is the slice of LogManager the buffer pool needs to enforce
// the WAL invariant: a dirty frame can't go to disk until every log record
// that touched it is durable. Kept as a small interface rather than an
// import of the recovery package to avoid a dependency cycle.
type logFlusher interface {
	GetPersistentLSN() types.LSN
	FlushNowBlocking(types.LSN)
}

// BufferPoolManager mediates all access to physical pages. It keeps a
// fixed-size pool of frames, serving a page from its frame if already
// resident and otherwise fetching it from disk, evicting an unpinned
// frame via freeList-then-LRUReplacer when the pool is full.
type BufferPoolManager struct {
	mu deadlock.Mutex

	diskManager disk.DiskManager
	logManager  logFlusher
	pages       []*page.Page
	replacer    *LRUReplacer
	freeList    []FrameID
	pageTable   *hash.ExtendibleHashTable[types.PageID, FrameID]
}

// NewBufferPoolManager returns an empty buffer pool manager of the given
// size. logManager may be nil, in which case the WAL-before-flush
// invariant is skipped (used by tests that don't exercise recovery).
func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager, logManager logFlusher) *BufferPoolManager {
	freeList := make([]FrameID, poolSize)
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList[i] = FrameID(i)
	}

	return &BufferPoolManager{
		diskManager: diskManager,
		logManager:  logManager,
		pages:       pages,
		replacer:    NewLRUReplacer(),
		freeList:    freeList,
		pageTable:   hash.NewExtendibleHashTable[types.PageID, FrameID](pageTableBucketSize, hashPageID),
	}
}

// FetchPage fetches the requested page from the buffer pool, loading it
// from disk if it isn't resident. Returns nil if the pool is full of
// pinned pages.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) *page.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameID, ok := b.pageTable.Find(pageID); ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.Erase(frameID)
		return pg
	}

	frameID, isFromFreeList, ok := b.getFrameID()
	if !ok {
		return nil
	}
	if !isFromFreeList {
		if err := b.evict(frameID); err != nil {
			b.freeList = append(b.freeList, frameID)
			return nil
		}
	}

	data := make([]byte, common.PageSize)
	if err := b.diskManager.ReadPage(pageID, data); err != nil {
		return nil
	}
	var pageData [common.PageSize]byte
	copy(pageData[:], data)

	pg := page.New(pageID, &pageData)
	b.pageTable.Insert(pageID, frameID)
	b.pages[frameID] = pg
	return pg
}

// NewPage allocates a brand-new page via the disk manager and installs it
// in a frame, pinned once. Returns nil if the pool is full of pinned pages.
func (b *BufferPoolManager) NewPage() *page.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, isFromFreeList, ok := b.getFrameID()
	if !ok {
		return nil
	}
	if !isFromFreeList {
		if err := b.evict(frameID); err != nil {
			b.freeList = append(b.freeList, frameID)
			return nil
		}
	}

	pageID := b.diskManager.AllocatePage()
	pg := page.NewEmpty(pageID)
	b.pageTable.Insert(pageID, frameID)
	b.pages[frameID] = pg
	return pg
}

// UnpinPage decrements a page's pin count, marking it evictable once the
// count reaches zero, and ORs in isDirty to the page's dirty flag.
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return errors.New("could not find page")
	}
	pg := b.pages[frameID]
	pg.DecPinCount()
	common.SH_Assert(pg.PinCount() >= 0, "pin count went negative")

	if pg.PinCount() <= 0 {
		b.replacer.Insert(frameID)
	}
	if isDirty {
		pg.SetIsDirty(true)
	}
	return nil
}

// FlushPage forces the target page to disk regardless of its dirty flag,
// observing the WAL-before-flush invariant.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return false
	}
	b.flushFrame(frameID)
	return true
}

// FlushAllPages flushes every resident page to disk.
func (b *BufferPoolManager) FlushAllPages() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pageTable.ForEach(func(_ types.PageID, frameID FrameID) {
		b.flushFrame(frameID)
	})
}

// DeletePage removes a page from the buffer pool and tells the disk
// manager to reclaim its space. Fails if the page is still pinned.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return nil
	}

	pg := b.pages[frameID]
	if pg.PinCount() > 0 {
		return errors.New("pin count greater than 0")
	}

	b.pageTable.Remove(pageID)
	b.replacer.Erase(frameID)
	b.diskManager.DeallocatePage(pageID)
	b.pages[frameID] = nil
	b.freeList = append(b.freeList, frameID)
	return nil
}

// getFrameID returns a frame to install a page into, preferring the free
// list over evicting an LRU victim. ok is false if the pool has no
// evictable frame (every frame pinned).
func (b *BufferPoolManager) getFrameID() (FrameID, bool, bool) {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return frameID, true, true
	}

	frameID, ok := b.replacer.Victim()
	return frameID, false, ok
}

// evict writes out whatever page currently occupies frameID, enforcing
// the WAL invariant: if the page's LSN is newer than what the log manager
// has made durable, the log is force-flushed first.
func (b *BufferPoolManager) evict(frameID FrameID) error {
	currentPage := b.pages[frameID]
	if currentPage == nil {
		return nil
	}
	common.SH_Assert(currentPage.PinCount() == 0, "evicting a pinned page")
	if currentPage.IsDirty() {
		if b.logManager != nil && currentPage.LSN() != types.InvalidLSN && currentPage.LSN() > b.logManager.GetPersistentLSN() {
			common.ShPrintf(common.DEBUGGING, "evict: force-flushing log up to lsn=%d before writing page %d", currentPage.LSN(), currentPage.ID())
			b.logManager.FlushNowBlocking(currentPage.LSN())
		}
		data := currentPage.Data()
		if err := b.diskManager.WritePage(currentPage.ID(), data[:]); err != nil {
			return err
		}
	}
	b.pageTable.Remove(currentPage.ID())
	return nil
}

func (b *BufferPoolManager) flushFrame(frameID FrameID) {
	pg := b.pages[frameID]
	if pg == nil {
		return
	}
	if b.logManager != nil && pg.LSN() != types.InvalidLSN && pg.LSN() > b.logManager.GetPersistentLSN() {
		b.logManager.FlushNowBlocking(pg.LSN())
	}
	data := pg.Data()
	b.diskManager.WritePage(pg.ID(), data[:])
	pg.SetIsDirty(false)
}
