package index

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/hiroakis/stormdb/storage/buffer"
	"github.com/hiroakis/stormdb/storage/page"
	"github.com/hiroakis/stormdb/types"
)

// BPlusTree is a disk-backed B+ tree index, generic over key type K and
// value type V, backed entirely by a BufferPoolManager: every node is a
// page, fetched and unpinned around each access. name identifies this
// tree's root pointer inside the shared header page.
type BPlusTree[K any, V any] struct {
	mu deadlock.Mutex

	name         string
	bpm          *buffer.BufferPoolManager
	headerPageID types.PageID

	keyCodec Codec[K]
	valCodec Codec[V]
	cmp      Comparator[K]

	leafMaxSize     int32
	internalMaxSize int32
}

// NewBPlusTree builds a tree over an existing header page. leafMaxSize
// and internalMaxSize bound node occupancy (internalMaxSize is rounded
// down to even, per spec). Pass 0 for either to derive a default from
// page/entry size.
func NewBPlusTree[K any, V any](
	name string,
	bpm *buffer.BufferPoolManager,
	headerPageID types.PageID,
	keyCodec Codec[K],
	valCodec Codec[V],
	cmp Comparator[K],
	leafMaxSize, internalMaxSize int32,
) *BPlusTree[K, V] {
	if leafMaxSize == 0 {
		leafMaxSize = int32((page.PageSize-leafEntriesOffset)/(keyCodec.Size()+valCodec.Size())) - 1
	}
	if internalMaxSize == 0 {
		internalMaxSize = int32((page.PageSize-internalEntriesOffset)/(keyCodec.Size()+4)) - 1
	}
	if internalMaxSize%2 != 0 {
		internalMaxSize--
	}
	return &BPlusTree[K, V]{
		name:            name,
		bpm:             bpm,
		headerPageID:    headerPageID,
		keyCodec:        keyCodec,
		valCodec:        valCodec,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
	}
}

func (t *BPlusTree[K, V]) header() *IndexHeaderPage {
	pg := t.bpm.FetchPage(t.headerPageID)
	return NewIndexHeaderPage(pg)
}

func (t *BPlusTree[K, V]) rootID() types.PageID {
	h := t.header()
	id := h.GetRootID(t.name)
	t.bpm.UnpinPage(t.headerPageID, false)
	return id
}

func (t *BPlusTree[K, V]) setRootID(id types.PageID) {
	h := t.header()
	h.SetRootID(t.name, id)
	t.bpm.UnpinPage(t.headerPageID, true)
}

// IsEmpty reports whether the tree has no root yet.
func (t *BPlusTree[K, V]) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootID() == types.InvalidPageID
}

func (t *BPlusTree[K, V]) fetchLeaf(id types.PageID) *leafPage[K, V] {
	pg := t.bpm.FetchPage(id)
	return newLeafPage[K, V](pg, t.keyCodec, t.valCodec, t.cmp)
}

func (t *BPlusTree[K, V]) fetchInternal(id types.PageID) *internalPage[K] {
	pg := t.bpm.FetchPage(id)
	return newInternalPage[K](pg, t.keyCodec, t.cmp)
}

// findLeaf descends from root to the leaf that would hold key, unpinning
// every internal page it passes through.
func (t *BPlusTree[K, V]) findLeaf(key K) types.PageID {
	id := t.rootID()
	for {
		pg := t.bpm.FetchPage(id)
		tp := treePage{pg}
		if tp.IsLeaf() {
			t.bpm.UnpinPage(id, false)
			return id
		}
		node := newInternalPage[K](pg, t.keyCodec, t.cmp)
		next := node.Lookup(key)
		t.bpm.UnpinPage(id, false)
		id = next
	}
}

// GetValue returns the value stored for key, if any.
func (t *BPlusTree[K, V]) GetValue(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V
	if t.rootID() == types.InvalidPageID {
		return zero, false
	}
	leafID := t.findLeaf(key)
	leaf := t.fetchLeaf(leafID)
	v, ok := leaf.Lookup(key)
	t.bpm.UnpinPage(leafID, false)
	return v, ok
}

// Insert adds (key, value), splitting nodes up the tree as needed.
// Returns false if key is already present.
func (t *BPlusTree[K, V]) Insert(key K, value V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootID() == types.InvalidPageID {
		pg := t.bpm.NewPage()
		leaf := newLeafPage[K, V](pg, t.keyCodec, t.valCodec, t.cmp)
		leaf.Init(pg.ID(), types.InvalidPageID, t.leafMaxSize)
		leaf.Insert(key, value)
		t.setRootID(pg.ID())
		t.bpm.UnpinPage(pg.ID(), true)
		return true
	}

	leafID := t.findLeaf(key)
	leaf := t.fetchLeaf(leafID)
	if !leaf.Insert(key, value) {
		t.bpm.UnpinPage(leafID, false)
		return false
	}

	if leaf.GetSize() > leaf.GetMaxSize() {
		t.splitLeaf(leaf)
	} else {
		t.bpm.UnpinPage(leafID, true)
	}
	return true
}

func (t *BPlusTree[K, V]) splitLeaf(leaf *leafPage[K, V]) {
	newPg := t.bpm.NewPage()
	sibling := newLeafPage[K, V](newPg, t.keyCodec, t.valCodec, t.cmp)
	sibling.Init(newPg.ID(), leaf.GetParentID(), leaf.GetMaxSize())

	leaf.MoveHalfTo(sibling)
	sibling.SetNextPageID(leaf.GetNextPageID())
	leaf.SetNextPageID(sibling.GetPageID())

	upKey := sibling.KeyAt(0)
	oldParentID := leaf.GetParentID()
	leafID, siblingID := leaf.GetPageID(), sibling.GetPageID()

	t.bpm.UnpinPage(leafID, true)
	t.bpm.UnpinPage(siblingID, true)

	t.insertIntoParent(leafID, oldParentID, upKey, siblingID)
}

func (t *BPlusTree[K, V]) splitInternal(node *internalPage[K]) {
	newPg := t.bpm.NewPage()
	sibling := newInternalPage[K](newPg, t.keyCodec, t.cmp)
	sibling.Init(newPg.ID(), node.GetParentID(), node.GetMaxSize())

	node.MoveHalfTo(sibling)
	upKey := sibling.KeyAt(0)

	for i := 0; i < int(sibling.GetSize()); i++ {
		t.setParentID(sibling.ValueAt(i), sibling.GetPageID())
	}

	oldParentID := node.GetParentID()
	nodeID, siblingID := node.GetPageID(), sibling.GetPageID()

	t.bpm.UnpinPage(nodeID, true)
	t.bpm.UnpinPage(siblingID, true)

	t.insertIntoParent(nodeID, oldParentID, upKey, siblingID)
}

// insertIntoParent links newPageID into oldPageID's parent, promoting key
// as the new separator. If oldPageID had no parent (it was root), a
// fresh root is created above both.
func (t *BPlusTree[K, V]) insertIntoParent(oldPageID, oldParentID types.PageID, key K, newPageID types.PageID) {
	if oldParentID == types.InvalidPageID {
		newRootPg := t.bpm.NewPage()
		newRoot := newInternalPage[K](newRootPg, t.keyCodec, t.cmp)
		newRoot.Init(newRootPg.ID(), types.InvalidPageID, t.internalMaxSize)
		newRoot.PopulateNewRoot(oldPageID, key, newPageID)

		t.setRootID(newRoot.GetPageID())
		t.setParentID(oldPageID, newRoot.GetPageID())
		t.setParentID(newPageID, newRoot.GetPageID())
		t.bpm.UnpinPage(newRootPg.ID(), true)
		return
	}

	parent := t.fetchInternal(oldParentID)
	parent.InsertNodeAfter(oldPageID, key, newPageID)
	t.setParentID(newPageID, oldParentID)

	if parent.GetSize() > parent.GetMaxSize() {
		t.splitInternal(parent)
	} else {
		t.bpm.UnpinPage(oldParentID, true)
	}
}

func (t *BPlusTree[K, V]) setParentID(pageID, parentID types.PageID) {
	pg := t.bpm.FetchPage(pageID)
	tp := treePage{pg}
	tp.SetParentID(parentID)
	t.bpm.UnpinPage(pageID, true)
}

// Remove deletes key, rebalancing (redistribute, else coalesce) up the
// tree as needed. Returns false if key wasn't present.
func (t *BPlusTree[K, V]) Remove(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootID() == types.InvalidPageID {
		return false
	}
	leafID := t.findLeaf(key)
	leaf := t.fetchLeaf(leafID)
	if !leaf.Remove(key) {
		t.bpm.UnpinPage(leafID, false)
		return false
	}
	t.handleLeafUnderflow(leaf)
	return true
}

func (t *BPlusTree[K, V]) handleLeafUnderflow(leaf *leafPage[K, V]) {
	leafID := leaf.GetPageID()

	if leaf.IsRootPage() {
		if leaf.GetSize() == 0 {
			t.setRootID(types.InvalidPageID)
		}
		t.bpm.UnpinPage(leafID, true)
		return
	}

	if leaf.GetSize() >= leaf.MinSize() {
		t.bpm.UnpinPage(leafID, true)
		return
	}

	parent := t.fetchInternal(leaf.GetParentID())
	idx := parent.ValueIndex(leafID)

	if idx > 0 {
		leftID := parent.ValueAt(idx - 1)
		left := t.fetchLeaf(leftID)
		if left.GetSize() > left.MinSize() {
			left.MoveLastToFrontOf(leaf)
			parent.setKeyAt(idx, leaf.KeyAt(0))
			t.bpm.UnpinPage(leftID, true)
			t.bpm.UnpinPage(leafID, true)
			t.bpm.UnpinPage(parent.GetPageID(), true)
			return
		}
		// merge leaf into left sibling.
		leaf.MoveAllTo(left)
		t.bpm.UnpinPage(leafID, true)
		t.bpm.UnpinPage(leftID, true)
		parent.Remove(idx)
		t.handleInternalUnderflow(parent)
		return
	}

	rightID := parent.ValueAt(idx + 1)
	right := t.fetchLeaf(rightID)
	if right.GetSize() > right.MinSize() {
		right.MoveFirstToEndOf(leaf)
		parent.setKeyAt(idx+1, right.KeyAt(0))
		t.bpm.UnpinPage(rightID, true)
		t.bpm.UnpinPage(leafID, true)
		t.bpm.UnpinPage(parent.GetPageID(), true)
		return
	}
	// merge right sibling into leaf.
	right.MoveAllTo(leaf)
	t.bpm.UnpinPage(rightID, true)
	t.bpm.UnpinPage(leafID, true)
	parent.Remove(idx + 1)
	t.handleInternalUnderflow(parent)
}

func (t *BPlusTree[K, V]) handleInternalUnderflow(node *internalPage[K]) {
	nodeID := node.GetPageID()

	if node.IsRootPage() {
		if node.GetSize() == 1 {
			onlyChild := node.RemoveAndReturnOnlyChild()
			t.setRootID(onlyChild)
			t.setParentID(onlyChild, types.InvalidPageID)
			t.bpm.UnpinPage(nodeID, false)
			t.bpm.DeletePage(nodeID)
		} else {
			t.bpm.UnpinPage(nodeID, true)
		}
		return
	}

	if node.GetSize() >= node.MinSize() {
		t.bpm.UnpinPage(nodeID, true)
		return
	}

	parent := t.fetchInternal(node.GetParentID())
	idx := parent.ValueIndex(nodeID)

	if idx > 0 {
		leftID := parent.ValueAt(idx - 1)
		left := t.fetchInternal(leftID)
		if left.GetSize() > left.MinSize() {
			middleKey := parent.KeyAt(idx)
			promoted := left.MoveLastToFrontOf(node, middleKey)
			t.setParentID(node.ValueAt(0), nodeID)
			parent.setKeyAt(idx, promoted)
			t.bpm.UnpinPage(leftID, true)
			t.bpm.UnpinPage(nodeID, true)
			t.bpm.UnpinPage(parent.GetPageID(), true)
			return
		}
		middleKey := parent.KeyAt(idx)
		for i := 0; i < int(node.GetSize()); i++ {
			t.setParentID(node.ValueAt(i), leftID)
		}
		node.MoveAllTo(left, middleKey)
		t.bpm.UnpinPage(nodeID, true)
		t.bpm.UnpinPage(leftID, true)
		parent.Remove(idx)
		t.handleInternalUnderflow(parent)
		return
	}

	rightID := parent.ValueAt(idx + 1)
	right := t.fetchInternal(rightID)
	if right.GetSize() > right.MinSize() {
		middleKey := parent.KeyAt(idx + 1)
		right.MoveFirstToEndOf(node, middleKey)
		t.setParentID(node.ValueAt(int(node.GetSize())-1), nodeID)
		parent.setKeyAt(idx+1, right.KeyAt(0))
		t.bpm.UnpinPage(rightID, true)
		t.bpm.UnpinPage(nodeID, true)
		t.bpm.UnpinPage(parent.GetPageID(), true)
		return
	}
	middleKey := parent.KeyAt(idx + 1)
	for i := 0; i < int(right.GetSize()); i++ {
		t.setParentID(right.ValueAt(i), nodeID)
	}
	right.MoveAllTo(node, middleKey)
	t.bpm.UnpinPage(rightID, true)
	t.bpm.UnpinPage(nodeID, true)
	parent.Remove(idx + 1)
	t.handleInternalUnderflow(parent)
}

// Begin returns an iterator positioned at the smallest key >= key. Pass
// the zero value and ok=false semantics aren't used here; call BeginAll
// for a full scan.
func (t *BPlusTree[K, V]) Begin(key K) *Iterator[K, V] {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootID() == types.InvalidPageID {
		return &Iterator[K, V]{tree: t, done: true}
	}
	leafID := t.findLeaf(key)
	leaf := t.fetchLeaf(leafID)
	idx := leaf.KeyIndex(key)
	if idx >= int(leaf.GetSize()) {
		next := leaf.GetNextPageID()
		t.bpm.UnpinPage(leafID, false)
		if next == types.InvalidPageID {
			return &Iterator[K, V]{tree: t, done: true}
		}
		return &Iterator[K, V]{tree: t, leafID: next, index: 0}
	}
	t.bpm.UnpinPage(leafID, false)
	return &Iterator[K, V]{tree: t, leafID: leafID, index: idx}
}

// BeginAll returns an iterator positioned at the smallest key in the
// tree, for a full forward scan.
func (t *BPlusTree[K, V]) BeginAll() *Iterator[K, V] {
	t.mu.Lock()
	id := t.rootID()
	t.mu.Unlock()

	if id == types.InvalidPageID {
		return &Iterator[K, V]{tree: t, done: true}
	}
	for {
		pg := t.bpm.FetchPage(id)
		tp := treePage{pg}
		if tp.IsLeaf() {
			t.bpm.UnpinPage(id, false)
			return &Iterator[K, V]{tree: t, leafID: id, index: 0}
		}
		node := newInternalPage[K](pg, t.keyCodec, t.cmp)
		next := node.ValueAt(0)
		t.bpm.UnpinPage(id, false)
		id = next
	}
}
