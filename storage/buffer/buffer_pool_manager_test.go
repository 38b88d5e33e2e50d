package buffer

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hiroakis/stormdb/storage/disk"
	"github.com/hiroakis/stormdb/storage/page"
	"github.com/hiroakis/stormdb/types"
)

func TestBufferPoolManagerBinaryData(t *testing.T) {
	poolSize := uint32(10)

	dm := disk.NewMemoryDiskManager()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(poolSize, dm, nil)

	page0 := bpm.NewPage()
	assert.Equal(t, types.PageID(0), page0.ID())

	randomData := make([]byte, page.PageSize)
	rand.Read(randomData)
	randomData[page.PageSize/2] = '0'
	randomData[page.PageSize-1] = '0'

	var want [page.PageSize]byte
	copy(want[:], randomData)

	page0.Copy(0, randomData)
	assert.Equal(t, want, *page0.Data())

	for i := uint32(1); i < poolSize; i++ {
		p := bpm.NewPage()
		assert.Equal(t, types.PageID(i), p.ID())
	}

	// buffer pool is full of pinned pages, no more frames to hand out.
	for i := poolSize; i < poolSize*2; i++ {
		assert.Nil(t, bpm.NewPage())
	}

	for i := 0; i < 5; i++ {
		assert.NoError(t, bpm.UnpinPage(types.PageID(i), true))
		bpm.FlushPage(types.PageID(i))
	}
	for i := 0; i < 4; i++ {
		p := bpm.NewPage()
		bpm.UnpinPage(p.ID(), false)
	}

	page0 = bpm.FetchPage(types.PageID(0))
	assert.Equal(t, want, *page0.Data())
	assert.NoError(t, bpm.UnpinPage(types.PageID(0), true))
}

func TestBufferPoolManagerEviction(t *testing.T) {
	poolSize := uint32(3)

	dm := disk.NewMemoryDiskManager()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(poolSize, dm, nil)

	for i := 0; i < 3; i++ {
		bpm.NewPage()
	}

	// unpin page 0; it becomes the LRU victim once the pool needs a frame.
	assert.NoError(t, bpm.UnpinPage(types.PageID(0), false))

	// allocating a fourth page should evict page 0's frame.
	page3 := bpm.NewPage()
	assert.Equal(t, types.PageID(3), page3.ID())

	// page 0's frame is gone; fetching it reloads a zeroed page from disk.
	assert.NoError(t, bpm.UnpinPage(types.PageID(1), false))
	refetched := bpm.FetchPage(types.PageID(0))
	assert.NotNil(t, refetched)
}

func TestBufferPoolManagerDeletePage(t *testing.T) {
	poolSize := uint32(3)

	dm := disk.NewMemoryDiskManager()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(poolSize, dm, nil)

	p := bpm.NewPage()
	id := p.ID()

	// pinned page can't be deleted.
	assert.Error(t, bpm.DeletePage(id))

	assert.NoError(t, bpm.UnpinPage(id, false))
	assert.NoError(t, bpm.DeletePage(id))

	// the frame is back on the free list, so a new page reuses it cleanly.
	p2 := bpm.NewPage()
	assert.NotNil(t, p2)
}
