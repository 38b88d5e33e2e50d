package index

import (
	"encoding/binary"

	"github.com/hiroakis/stormdb/storage/page"
	"github.com/hiroakis/stormdb/types"
)

// headerRecordSize is (name:32 bytes, root_page_id:4 bytes) per the
// glossary's "page 0, storing (index_name -> root_page_id) records".
const (
	headerNameSize   = 32
	headerRecordSize = headerNameSize + 4
	headerCountOffset = 0
	headerRecordsOffset = 4
)

// IndexHeaderPage is page 0 of the index file: a directory mapping index
// names to their B+ tree's root page id, so a tree can be reopened after
// restart without a separate catalog.
type IndexHeaderPage struct {
	pg *page.Page
}

func NewIndexHeaderPage(pg *page.Page) *IndexHeaderPage {
	return &IndexHeaderPage{pg}
}

func (h *IndexHeaderPage) data() []byte {
	d := h.pg.Data()
	return d[:]
}

func (h *IndexHeaderPage) count() int {
	return int(binary.LittleEndian.Uint32(h.data()[headerCountOffset:]))
}

func (h *IndexHeaderPage) setCount(n int) {
	binary.LittleEndian.PutUint32(h.data()[headerCountOffset:], uint32(n))
}

func (h *IndexHeaderPage) recordOffset(i int) int {
	return headerRecordsOffset + i*headerRecordSize
}

func (h *IndexHeaderPage) nameAt(i int) string {
	off := h.recordOffset(i)
	raw := h.data()[off : off+headerNameSize]
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

// GetRootID looks up name's root page id. Returns InvalidPageID if name
// isn't recorded.
func (h *IndexHeaderPage) GetRootID(name string) types.PageID {
	for i := 0; i < h.count(); i++ {
		if h.nameAt(i) == name {
			off := h.recordOffset(i) + headerNameSize
			return PageIDCodec{}.Decode(h.data()[off : off+4])
		}
	}
	return types.InvalidPageID
}

// SetRootID records or updates name's root page id.
func (h *IndexHeaderPage) SetRootID(name string, rootID types.PageID) {
	for i := 0; i < h.count(); i++ {
		if h.nameAt(i) == name {
			off := h.recordOffset(i) + headerNameSize
			PageIDCodec{}.Encode(rootID, h.data()[off:off+4])
			return
		}
	}

	i := h.count()
	off := h.recordOffset(i)
	buf := h.data()
	var nameBuf [headerNameSize]byte
	copy(nameBuf[:], name)
	copy(buf[off:off+headerNameSize], nameBuf[:])
	PageIDCodec{}.Encode(rootID, buf[off+headerNameSize:off+headerRecordSize])
	h.setCount(i + 1)
}
