package index

import (
	"sort"

	"github.com/hiroakis/stormdb/storage/page"
	"github.com/hiroakis/stormdb/types"
)

const internalEntriesOffset = commonHeaderSize

// internalPage is a B+ tree internal node: n+1 child pointers interleaved
// with n keys. Entry 0's key is invalid and never consulted; entry i
// (i>=1) separates subtree(i-1) (keys < key(i)) from subtree(i) (keys >=
// key(i)).
type internalPage[K any] struct {
	treePage
	keyCodec Codec[K]
	cmp      Comparator[K]
}

func newInternalPage[K any](pg *page.Page, keyCodec Codec[K], cmp Comparator[K]) *internalPage[K] {
	return &internalPage[K]{treePage{pg}, keyCodec, cmp}
}

func (n *internalPage[K]) entrySize() int {
	return n.keyCodec.Size() + PageIDCodec{}.Size()
}

func (n *internalPage[K]) Init(pageID, parentID types.PageID, maxSize int32) {
	n.initHeader(internalNode, pageID, parentID, maxSize)
}

func (n *internalPage[K]) entryOffset(i int) int {
	return internalEntriesOffset + i*n.entrySize()
}

func (n *internalPage[K]) KeyAt(i int) K {
	off := n.entryOffset(i)
	return n.keyCodec.Decode(n.data()[off : off+n.keyCodec.Size()])
}

func (n *internalPage[K]) setKeyAt(i int, k K) {
	off := n.entryOffset(i)
	n.keyCodec.Encode(k, n.data()[off:off+n.keyCodec.Size()])
}

func (n *internalPage[K]) ValueAt(i int) types.PageID {
	off := n.entryOffset(i) + n.keyCodec.Size()
	return PageIDCodec{}.Decode(n.data()[off : off+4])
}

func (n *internalPage[K]) setValueAt(i int, v types.PageID) {
	off := n.entryOffset(i) + n.keyCodec.Size()
	PageIDCodec{}.Encode(v, n.data()[off:off+4])
}

func (n *internalPage[K]) setEntry(i int, k K, v types.PageID) {
	n.setKeyAt(i, k)
	n.setValueAt(i, v)
}

// ValueIndex returns the index i such that ValueAt(i) == childPageID, or
// -1 if not found.
func (n *internalPage[K]) ValueIndex(childPageID types.PageID) int {
	for i := 0; i < int(n.GetSize()); i++ {
		if n.ValueAt(i) == childPageID {
			return i
		}
	}
	return -1
}

// Lookup returns the child page id to descend into for key: the last
// entry whose key is <= key, or entry 0 if key is less than every
// separator.
func (n *internalPage[K]) Lookup(key K) types.PageID {
	size := int(n.GetSize())
	i := sort.Search(size-1, func(i int) bool {
		return n.cmp(n.KeyAt(i+1), key) > 0
	})
	return n.ValueAt(i)
}

// PopulateNewRoot sets up a brand new root with two children separated
// by one key, used right after the old root splits.
func (n *internalPage[K]) PopulateNewRoot(leftChild types.PageID, key K, rightChild types.PageID) {
	n.setValueAt(0, leftChild)
	n.setEntry(1, key, rightChild)
	n.SetSize(2)
}

// InsertNodeAfter inserts (key, newChild) right after the entry whose
// child pointer is oldChild, shifting later entries right.
func (n *internalPage[K]) InsertNodeAfter(oldChild types.PageID, key K, newChild types.PageID) {
	idx := n.ValueIndex(oldChild)
	size := int(n.GetSize())
	for j := size; j > idx+1; j-- {
		n.setEntry(j, n.KeyAt(j-1), n.ValueAt(j-1))
	}
	n.setEntry(idx+1, key, newChild)
	n.IncSize(1)
}

// Remove deletes the entry at index i, shifting later entries left.
func (n *internalPage[K]) Remove(i int) {
	size := int(n.GetSize())
	for j := i; j < size-1; j++ {
		n.setEntry(j, n.KeyAt(j+1), n.ValueAt(j+1))
	}
	n.IncSize(-1)
}

// RemoveAndReturnOnlyChild is used when the root shrinks to a single
// child after a merge; returns that child's page id.
func (n *internalPage[K]) RemoveAndReturnOnlyChild() types.PageID {
	return n.ValueAt(0)
}

// MoveHalfTo moves the upper half of n's entries (including pointers) to
// sibling, used on split. sibling must be empty.
func (n *internalPage[K]) MoveHalfTo(sibling *internalPage[K]) {
	size := int(n.GetSize())
	mid := size / 2
	for i := mid; i < size; i++ {
		sibling.setEntry(i-mid, n.KeyAt(i), n.ValueAt(i))
	}
	sibling.SetSize(int32(size - mid))
	n.SetSize(int32(mid))
}

// MoveAllTo appends all of n's entries onto sibling during a coalesce;
// middleKey becomes the separator for n's former first child (whose key
// slot 0 carried no real key).
func (n *internalPage[K]) MoveAllTo(sibling *internalPage[K], middleKey K) {
	base := int(sibling.GetSize())
	n.setKeyAt(0, middleKey)
	for i := 0; i < int(n.GetSize()); i++ {
		sibling.setEntry(base+i, n.KeyAt(i), n.ValueAt(i))
	}
	sibling.IncSize(n.GetSize())
	n.SetSize(0)
}

// MoveFirstToEndOf moves n's first child (with middleKey as its new
// separator in target) onto the end of target, n's left sibling.
func (n *internalPage[K]) MoveFirstToEndOf(target *internalPage[K], middleKey K) {
	child := n.ValueAt(0)
	target.setEntry(int(target.GetSize()), middleKey, child)
	target.IncSize(1)

	for j := 0; j < int(n.GetSize())-1; j++ {
		n.setEntry(j, n.KeyAt(j+1), n.ValueAt(j+1))
	}
	n.IncSize(-1)
}

// MoveLastToFrontOf moves n's last child (with middleKey as target's new
// first separator) onto the front of target, n's right sibling. Returns
// n's former last key, which becomes the new separator between n and
// target in their parent.
func (n *internalPage[K]) MoveLastToFrontOf(target *internalPage[K], middleKey K) K {
	last := int(n.GetSize()) - 1
	promoted := n.KeyAt(last)
	child := n.ValueAt(last)
	for j := int(target.GetSize()); j > 0; j-- {
		target.setEntry(j, target.KeyAt(j-1), target.ValueAt(j-1))
	}
	target.setValueAt(0, child)
	target.setKeyAt(1, middleKey)
	target.IncSize(1)
	n.IncSize(-1)
	return promoted
}
