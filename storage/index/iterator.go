package index

import "github.com/hiroakis/stormdb/types"

// Iterator walks a B+ tree's leaves left to right via next_page_id,
// fetching one leaf page at a time.
type Iterator[K any, V any] struct {
	tree   *BPlusTree[K, V]
	leafID types.PageID
	index  int
	done   bool
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator[K, V]) Valid() bool {
	return !it.done
}

// Key returns the key at the iterator's current position.
func (it *Iterator[K, V]) Key() K {
	leaf := it.tree.fetchLeaf(it.leafID)
	k := leaf.KeyAt(it.index)
	it.tree.bpm.UnpinPage(it.leafID, false)
	return k
}

// Value returns the value at the iterator's current position.
func (it *Iterator[K, V]) Value() V {
	leaf := it.tree.fetchLeaf(it.leafID)
	v := leaf.ValueAt(it.index)
	it.tree.bpm.UnpinPage(it.leafID, false)
	return v
}

// Next advances the iterator, crossing into the next leaf page when the
// current one is exhausted. Becomes invalid past the last entry.
func (it *Iterator[K, V]) Next() {
	if it.done {
		return
	}
	leaf := it.tree.fetchLeaf(it.leafID)
	size := int(leaf.GetSize())
	next := leaf.GetNextPageID()
	it.tree.bpm.UnpinPage(it.leafID, false)

	it.index++
	if it.index < size {
		return
	}
	if next == types.InvalidPageID {
		it.done = true
		return
	}
	it.leafID = next
	it.index = 0
}
