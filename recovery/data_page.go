package recovery

import (
	"encoding/binary"

	"github.com/hiroakis/stormdb/storage/page"
)

// dataSlotSize is the fixed-width slot recovery's redo/undo passes use
// to locate a tuple by RID: RID.GetSlot() indexes directly into an array
// of fixed slots, each holding a tombstone byte, a 4-byte length prefix,
// and up to dataMaxTupleSize raw bytes. Real tuple storage layout is out
// of scope; this is only what's needed to demonstrate LSN-gated page
// mutation against real RIDs.
const (
	dataSlotSize     = 512
	dataMaxTupleSize = dataSlotSize - 5
)

func dataSlotOffset(slot uint32) int {
	return int(slot) * dataSlotSize
}

func readDataSlot(pg *page.Page, slot uint32) (tombstone bool, tuple []byte) {
	buf := pg.Data()
	off := dataSlotOffset(slot)
	tombstone = buf[off] != 0
	n := binary.LittleEndian.Uint32(buf[off+1:])
	if n == 0 {
		return tombstone, nil
	}
	tuple = make([]byte, n)
	copy(tuple, buf[off+5:off+5+int(n)])
	return tombstone, tuple
}

func writeDataSlot(pg *page.Page, slot uint32, tombstone bool, tuple []byte) {
	buf := pg.Data()
	off := dataSlotOffset(slot)
	setTombstone(pg, slot, tombstone)
	binary.LittleEndian.PutUint32(buf[off+1:], uint32(len(tuple)))
	copy(buf[off+5:], tuple)
}

func setTombstone(pg *page.Page, slot uint32, tombstone bool) {
	buf := pg.Data()
	off := dataSlotOffset(slot)
	if tombstone {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
}
