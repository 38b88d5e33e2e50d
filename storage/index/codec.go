package index

import (
	"encoding/binary"

	"github.com/hiroakis/stormdb/types"
)

// Codec serializes fixed-width keys and values into page entry slots.
// Size must be constant for a given Codec instance: the page layout
// computes entry offsets by multiplying an index by Size().
type Codec[T any] interface {
	Size() int
	Encode(v T, buf []byte)
	Decode(buf []byte) T
}

// Int64Codec encodes int64 keys as 8 little-endian bytes.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }
func (Int64Codec) Encode(v int64, buf []byte) {
	binary.LittleEndian.PutUint64(buf, uint64(v))
}
func (Int64Codec) Decode(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}

// RIDCodec encodes a types.RID as its 8-byte wire form.
type RIDCodec struct{}

func (RIDCodec) Size() int { return types.SizeOfRID }
func (RIDCodec) Encode(v types.RID, buf []byte) {
	copy(buf, v.Serialize())
}
func (RIDCodec) Decode(buf []byte) types.RID {
	return types.NewRIDFromBytes(buf)
}

// PageIDCodec encodes a types.PageID as 4 little-endian bytes. Used for
// internal-page child pointers.
type PageIDCodec struct{}

func (PageIDCodec) Size() int { return 4 }
func (PageIDCodec) Encode(v types.PageID, buf []byte) {
	binary.LittleEndian.PutUint32(buf, uint32(v))
}
func (PageIDCodec) Decode(buf []byte) types.PageID {
	return types.PageID(binary.LittleEndian.Uint32(buf))
}
