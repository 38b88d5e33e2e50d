// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	deadlock "github.com/sasha-s/go-deadlock"
)

// FrameID identifies a slot in the buffer pool's fixed-size frame array.
type FrameID uint32

// node is one entry in the replacer's doubly-linked eviction order.
type node struct {
	id         FrameID
	prev, next *node
}

// LRUReplacer tracks unpinned frames in insertion order and hands back the
// least-recently-inserted one as the next eviction victim. A frame appears
// at most once: re-inserting an already-tracked frame moves it to the tail
// instead of creating a duplicate entry.
type LRUReplacer struct {
	mu         deadlock.Mutex
	head, tail *node
	index      map[FrameID]*node
}

func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{index: make(map[FrameID]*node)}
}

// Insert marks frameID as unpinned and eligible for eviction, appending it
// at the tail of the eviction order.
func (r *LRUReplacer) Insert(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.index[frameID]; ok {
		r.unlink(n)
	}
	n := &node{id: frameID}
	r.appendTail(n)
	r.index[frameID] = n
}

// Victim removes and returns the least-recently-inserted frame. The second
// return value is false if the replacer is empty.
func (r *LRUReplacer) Victim() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.head == nil {
		return FrameID(0), false
	}
	n := r.head
	r.unlink(n)
	delete(r.index, n.id)
	return n.id, true
}

// Erase removes frameID from the replacer, if present. Returns true if it
// was present.
func (r *LRUReplacer) Erase(frameID FrameID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.index[frameID]
	if !ok {
		return false
	}
	r.unlink(n)
	delete(r.index, frameID)
	return true
}

// Size returns the number of frames currently tracked as evictable.
func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

func (r *LRUReplacer) appendTail(n *node) {
	n.prev = r.tail
	n.next = nil
	if r.tail != nil {
		r.tail.next = n
	} else {
		r.head = n
	}
	r.tail = n
}

func (r *LRUReplacer) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		r.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		r.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
