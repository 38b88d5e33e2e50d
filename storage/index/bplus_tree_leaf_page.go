package index

import (
	"sort"

	"github.com/hiroakis/stormdb/storage/page"
	"github.com/hiroakis/stormdb/types"
)

const offsetNextPageID = commonHeaderSize
const leafEntriesOffset = commonHeaderSize + 4

// leafPage is a B+ tree leaf: sorted (key, value) pairs plus the page id
// of the next leaf in key order, forming a singly-linked chain.
type leafPage[K any, V any] struct {
	treePage
	keyCodec Codec[K]
	valCodec Codec[V]
	cmp      Comparator[K]
}

func newLeafPage[K any, V any](pg *page.Page, keyCodec Codec[K], valCodec Codec[V], cmp Comparator[K]) *leafPage[K, V] {
	return &leafPage[K, V]{treePage{pg}, keyCodec, valCodec, cmp}
}

func (l *leafPage[K, V]) entrySize() int {
	return l.keyCodec.Size() + l.valCodec.Size()
}

func (l *leafPage[K, V]) Init(pageID, parentID types.PageID, maxSize int32) {
	l.initHeader(leafNode, pageID, parentID, maxSize)
	l.SetNextPageID(types.InvalidPageID)
}

func (l *leafPage[K, V]) GetNextPageID() types.PageID {
	return PageIDCodec{}.Decode(l.data()[offsetNextPageID:])
}

func (l *leafPage[K, V]) SetNextPageID(id types.PageID) {
	PageIDCodec{}.Encode(id, l.data()[offsetNextPageID:])
}

func (l *leafPage[K, V]) entryOffset(i int) int {
	return leafEntriesOffset + i*l.entrySize()
}

func (l *leafPage[K, V]) KeyAt(i int) K {
	off := l.entryOffset(i)
	return l.keyCodec.Decode(l.data()[off : off+l.keyCodec.Size()])
}

func (l *leafPage[K, V]) ValueAt(i int) V {
	off := l.entryOffset(i) + l.keyCodec.Size()
	return l.valCodec.Decode(l.data()[off : off+l.valCodec.Size()])
}

func (l *leafPage[K, V]) setEntry(i int, key K, value V) {
	off := l.entryOffset(i)
	buf := l.data()
	l.keyCodec.Encode(key, buf[off:off+l.keyCodec.Size()])
	l.valCodec.Encode(value, buf[off+l.keyCodec.Size():off+l.entrySize()])
}

// KeyIndex returns the smallest i such that KeyAt(i) >= key.
func (l *leafPage[K, V]) KeyIndex(key K) int {
	n := int(l.GetSize())
	return sort.Search(n, func(i int) bool {
		return l.cmp(l.KeyAt(i), key) >= 0
	})
}

// Lookup returns the value for key and whether it was found.
func (l *leafPage[K, V]) Lookup(key K) (V, bool) {
	i := l.KeyIndex(key)
	if i < int(l.GetSize()) && l.cmp(l.KeyAt(i), key) == 0 {
		return l.ValueAt(i), true
	}
	var zero V
	return zero, false
}

// Insert inserts (key, value) keeping entries sorted. Returns false
// without modifying the page if key is already present.
func (l *leafPage[K, V]) Insert(key K, value V) bool {
	i := l.KeyIndex(key)
	size := int(l.GetSize())
	if i < size && l.cmp(l.KeyAt(i), key) == 0 {
		return false
	}
	for j := size; j > i; j-- {
		l.setEntry(j, l.KeyAt(j-1), l.ValueAt(j-1))
	}
	l.setEntry(i, key, value)
	l.IncSize(1)
	return true
}

// Remove deletes key, returning whether it was present.
func (l *leafPage[K, V]) Remove(key K) bool {
	i := l.KeyIndex(key)
	size := int(l.GetSize())
	if i >= size || l.cmp(l.KeyAt(i), key) != 0 {
		return false
	}
	for j := i; j < size-1; j++ {
		l.setEntry(j, l.KeyAt(j+1), l.ValueAt(j+1))
	}
	l.IncSize(-1)
	return true
}

// MoveHalfTo moves the upper half of l's entries to sibling, used on
// split. sibling must be empty.
func (l *leafPage[K, V]) MoveHalfTo(sibling *leafPage[K, V]) {
	size := int(l.GetSize())
	mid := size / 2
	for i := mid; i < size; i++ {
		sibling.setEntry(i-mid, l.KeyAt(i), l.ValueAt(i))
	}
	sibling.SetSize(int32(size - mid))
	l.SetSize(int32(mid))
}

// MoveAllTo appends all of l's entries onto sibling (a merge of l into
// the left sibling). Used during coalesce.
func (l *leafPage[K, V]) MoveAllTo(sibling *leafPage[K, V]) {
	base := int(sibling.GetSize())
	for i := 0; i < int(l.GetSize()); i++ {
		sibling.setEntry(base+i, l.KeyAt(i), l.ValueAt(i))
	}
	sibling.IncSize(l.GetSize())
	sibling.SetNextPageID(l.GetNextPageID())
	l.SetSize(0)
}

// MoveFirstToEndOf moves l's first entry onto the end of target,
// rebalancing after target underflows (target is l's left sibling).
func (l *leafPage[K, V]) MoveFirstToEndOf(target *leafPage[K, V]) {
	key, val := l.KeyAt(0), l.ValueAt(0)
	target.setEntry(int(target.GetSize()), key, val)
	target.IncSize(1)
	l.Remove(key)
}

// MoveLastToFrontOf moves l's last entry onto the front of target
// (target is l's right sibling).
func (l *leafPage[K, V]) MoveLastToFrontOf(target *leafPage[K, V]) {
	last := int(l.GetSize()) - 1
	key, val := l.KeyAt(last), l.ValueAt(last)
	for j := int(target.GetSize()); j > 0; j-- {
		target.setEntry(j, target.KeyAt(j-1), target.ValueAt(j-1))
	}
	target.setEntry(0, key, val)
	target.IncSize(1)
	l.IncSize(-1)
}
