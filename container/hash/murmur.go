package hash

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// HashBytes hashes an arbitrary byte slice with murmur3, truncated to the
// low 32 bits. This is the hash the extendible hash table uses by default
// for any key type that knows how to serialize itself.
func HashBytes(key []byte) uint32 {
	h := murmur3.New128()
	h.Write(key)
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint32(sum)
}

// HashInt32 hashes a 32-bit integer key, little-endian.
func HashInt32(v int32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return HashBytes(buf[:])
}

// HashUint32 hashes a 32-bit unsigned integer key, little-endian.
func HashUint32(v uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return HashBytes(buf[:])
}

// HashString hashes a string key.
func HashString(s string) uint32 {
	return HashBytes([]byte(s))
}
