package index

import (
	"encoding/binary"

	"github.com/hiroakis/stormdb/storage/page"
	"github.com/hiroakis/stormdb/types"
)

// nodeType tags a B+ tree page as leaf or internal.
type nodeType int32

const (
	invalidNode nodeType = iota
	leafNode
	internalNode
)

// Common header layout, bytes 0..23 of the page: page_type, lsn, size,
// max_size, parent_id, page_id — six 4-byte fields, little-endian.
const (
	offsetPageType = 0
	offsetLSN      = 4
	offsetSize     = 8
	offsetMaxSize  = 12
	offsetParentID = 16
	offsetPageID   = 20
	commonHeaderSize = 24
)

// treePage wraps a raw buffer-pool page with accessors for the common
// B+ tree header. Leaf and internal page types embed it.
type treePage struct {
	pg *page.Page
}

func (t treePage) data() []byte {
	d := t.pg.Data()
	return d[:]
}

func (t treePage) GetPageType() nodeType {
	return nodeType(int32(binary.LittleEndian.Uint32(t.data()[offsetPageType:])))
}

func (t treePage) setPageType(v nodeType) {
	binary.LittleEndian.PutUint32(t.data()[offsetPageType:], uint32(int32(v)))
}

func (t treePage) GetSize() int32 {
	return int32(binary.LittleEndian.Uint32(t.data()[offsetSize:]))
}

func (t treePage) SetSize(v int32) {
	binary.LittleEndian.PutUint32(t.data()[offsetSize:], uint32(v))
}

func (t treePage) IncSize(delta int32) {
	t.SetSize(t.GetSize() + delta)
}

func (t treePage) GetMaxSize() int32 {
	return int32(binary.LittleEndian.Uint32(t.data()[offsetMaxSize:]))
}

func (t treePage) SetMaxSize(v int32) {
	binary.LittleEndian.PutUint32(t.data()[offsetMaxSize:], uint32(v))
}

// MinSize is the minimum occupancy for a non-root node: ceil(max_size/2).
func (t treePage) MinSize() int32 {
	m := t.GetMaxSize()
	return (m + 1) / 2
}

func (t treePage) GetParentID() types.PageID {
	return types.PageID(binary.LittleEndian.Uint32(t.data()[offsetParentID:]))
}

func (t treePage) SetParentID(id types.PageID) {
	binary.LittleEndian.PutUint32(t.data()[offsetParentID:], uint32(id))
}

func (t treePage) GetPageID() types.PageID {
	return types.PageID(binary.LittleEndian.Uint32(t.data()[offsetPageID:]))
}

func (t treePage) setPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(t.data()[offsetPageID:], uint32(id))
}

func (t treePage) IsLeaf() bool {
	return t.GetPageType() == leafNode
}

func (t treePage) IsRootPage() bool {
	return t.GetParentID() == types.InvalidPageID
}

func (t treePage) initHeader(pageType nodeType, pageID, parentID types.PageID, maxSize int32) {
	t.setPageType(pageType)
	t.setPageID(pageID)
	t.SetParentID(parentID)
	t.SetMaxSize(maxSize)
	t.SetSize(0)
}
