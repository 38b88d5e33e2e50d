// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package types

import (
	"bytes"
	"encoding/binary"
)

// RID is the record identifier for a given page id and slot number.
type RID struct {
	pageID  PageID
	slotNum uint32
}

func NewRID(pageID PageID, slot uint32) RID {
	return RID{pageID, slot}
}

// Set sets the record identifier
func (r *RID) Set(pageID PageID, slot uint32) {
	r.pageID = pageID
	r.slotNum = slot
}

// GetPageId gets the page id
func (r RID) GetPageId() PageID {
	return r.pageID
}

// GetSlot gets the slot number
func (r RID) GetSlot() uint32 {
	return r.slotNum
}

const SizeOfRID = 8

// Serialize casts it to []byte (page id then slot number, little endian).
func (r RID) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, r.pageID)
	binary.Write(buf, binary.LittleEndian, r.slotNum)
	return buf.Bytes()
}

// NewRIDFromBytes creates a RID from []byte
func NewRIDFromBytes(data []byte) (ret RID) {
	buf := bytes.NewBuffer(data)
	binary.Read(buf, binary.LittleEndian, &ret.pageID)
	binary.Read(buf, binary.LittleEndian, &ret.slotNum)
	return ret
}
