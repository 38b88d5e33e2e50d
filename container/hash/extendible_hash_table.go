// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package hash

import (
	"fmt"

	"github.com/hiroakis/stormdb/common"
)

// maxRetries bounds the number of split-and-retry cycles Insert will run
// before falling back to chaining an overflow bucket. A degenerate hash
// function could otherwise spin forever doubling the directory.
const maxRetries = 32

type pair[K comparable, V any] struct {
	key   K
	value V
}

// bucket holds at most bucketSize pairs directly, chaining into overflow
// buckets when a split still leaves it full (a pathological hash
// collision). Overflow buckets don't participate in directory splitting.
type bucket[K comparable, V any] struct {
	localDepth uint32
	pairs      []pair[K, V]
	overflow   *bucket[K, V]
}

func newBucket[K comparable, V any](localDepth uint32) *bucket[K, V] {
	return &bucket[K, V]{localDepth: localDepth}
}

func (b *bucket[K, V]) find(key K) (V, bool) {
	for cur := b; cur != nil; cur = cur.overflow {
		for _, p := range cur.pairs {
			if p.key == key {
				return p.value, true
			}
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) remove(key K) bool {
	for cur := b; cur != nil; cur = cur.overflow {
		for i, p := range cur.pairs {
			if p.key == key {
				cur.pairs = append(cur.pairs[:i], cur.pairs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// ExtendibleHashTable is a generic, in-memory associative array with
// directory-doubling bucket splits on overflow. Used both as the buffer
// pool's page table (PageID -> frame index) and as a standalone index.
type ExtendibleHashTable[K comparable, V any] struct {
	latch       common.ReaderWriterLatch
	globalDepth uint32
	bucketSize  int
	directory   []*bucket[K, V]
	numBuckets  int
	hashFn      func(K) uint32
}

// NewExtendibleHashTable creates a table whose buckets hold at most
// bucketSize pairs before splitting. hashFn must be deterministic.
func NewExtendibleHashTable[K comparable, V any](bucketSize int, hashFn func(K) uint32) *ExtendibleHashTable[K, V] {
	root := newBucket[K, V](0)
	return &ExtendibleHashTable[K, V]{
		latch:      common.NewRWLatch(),
		bucketSize: bucketSize,
		directory:  []*bucket[K, V]{root},
		numBuckets: 1,
		hashFn:     hashFn,
	}
}

// Insert places (k, v) in its bucket, splitting (and doubling the
// directory if needed) until the key fits, or chaining an overflow
// bucket if splitting stops making progress. Inserting an existing key
// overwrites its value.
func (t *ExtendibleHashTable[K, V]) Insert(key K, value V) {
	t.latch.WLock()
	defer t.latch.WUnlock()

	if existing := t.directory[t.dirIndex(key)]; existing != nil {
		for cur := existing; cur != nil; cur = cur.overflow {
			for i := range cur.pairs {
				if cur.pairs[i].key == key {
					cur.pairs[i].value = value
					return
				}
			}
		}
	}

	for attempt := 0; ; attempt++ {
		idx := t.dirIndex(key)
		b := t.directory[idx]

		if len(b.pairs) < t.bucketSize {
			b.pairs = append(b.pairs, pair[K, V]{key, value})
			return
		}

		if attempt >= maxRetries {
			t.insertOverflow(b, key, value)
			return
		}

		if b.localDepth == t.globalDepth {
			t.growDirectory()
		}
		t.splitBucket(idx)
	}
}

func (t *ExtendibleHashTable[K, V]) insertOverflow(b *bucket[K, V], key K, value V) {
	cur := b
	for cur.overflow != nil {
		cur = cur.overflow
	}
	if len(cur.pairs) >= t.bucketSize {
		cur.overflow = newBucket[K, V](cur.localDepth)
		cur = cur.overflow
	}
	cur.pairs = append(cur.pairs, pair[K, V]{key, value})
}

// Find looks up key, returning (value, true) if present.
func (t *ExtendibleHashTable[K, V]) Find(key K) (V, bool) {
	t.latch.RLock()
	defer t.latch.RUnlock()

	b := t.directory[t.dirIndex(key)]
	return b.find(key)
}

// Remove deletes key if present, returning whether it was found. Merge /
// directory shrink is not implemented, matching the spec.
func (t *ExtendibleHashTable[K, V]) Remove(key K) bool {
	t.latch.WLock()
	defer t.latch.WUnlock()

	b := t.directory[t.dirIndex(key)]
	return b.remove(key)
}

// GlobalDepth returns the number of directory-discriminating bits.
func (t *ExtendibleHashTable[K, V]) GlobalDepth() uint32 {
	t.latch.RLock()
	defer t.latch.RUnlock()
	return t.globalDepth
}

// LocalDepth returns the local depth of the bucket at the given directory
// index, or 0 if the index is out of range.
func (t *ExtendibleHashTable[K, V]) LocalDepth(dirIndex int) uint32 {
	t.latch.RLock()
	defer t.latch.RUnlock()
	if dirIndex < 0 || dirIndex >= len(t.directory) {
		return 0
	}
	return t.directory[dirIndex].localDepth
}

// NumBuckets returns the number of distinct buckets (directory slots that
// share a bucket count once).
func (t *ExtendibleHashTable[K, V]) NumBuckets() int {
	t.latch.RLock()
	defer t.latch.RUnlock()
	return t.numBuckets
}

// ForEach calls fn once per stored (key, value) pair, each bucket visited
// at most once regardless of how many directory slots point to it.
func (t *ExtendibleHashTable[K, V]) ForEach(fn func(K, V)) {
	t.latch.RLock()
	defer t.latch.RUnlock()

	seen := make(map[*bucket[K, V]]bool, t.numBuckets)
	for _, b := range t.directory {
		for cur := b; cur != nil; cur = cur.overflow {
			if seen[cur] {
				break
			}
			seen[cur] = true
			for _, p := range cur.pairs {
				fn(p.key, p.value)
			}
		}
	}
}

func (t *ExtendibleHashTable[K, V]) dirIndex(key K) int {
	mask := uint32(len(t.directory) - 1)
	return int(t.hashFn(key) & mask)
}

func (t *ExtendibleHashTable[K, V]) growDirectory() {
	old := t.directory
	grown := make([]*bucket[K, V], len(old)*2)
	copy(grown, old)
	copy(grown[len(old):], old)
	t.directory = grown
	t.globalDepth++
}

// splitBucket splits the bucket at dirIndex, bumping its local depth,
// creating a sibling bucket, and redistributing directory pointers and
// pairs between the two based on the newly-significant bit.
func (t *ExtendibleHashTable[K, V]) splitBucket(dirIndex int) {
	b := t.directory[dirIndex]
	newLocalDepth := b.localDepth + 1
	sibling := newBucket[K, V](newLocalDepth)
	b.localDepth = newLocalDepth
	t.numBuckets++

	common.SH_Assert(newLocalDepth <= t.globalDepth, fmt.Sprintf("local depth %d exceeds global depth %d after split", newLocalDepth, t.globalDepth))
	common.ShPrintf(common.DEBUG_INFO_DETAIL, "splitBucket: dirIndex=%d newLocalDepth=%d globalDepth=%d", dirIndex, newLocalDepth, t.globalDepth)

	splitBit := uint32(1) << (newLocalDepth - 1)
	for i, slot := range t.directory {
		if slot == b && uint32(i)&splitBit != 0 {
			t.directory[i] = sibling
		}
	}

	oldPairs := b.pairs
	b.pairs = nil
	for _, p := range oldPairs {
		if t.hashFn(p.key)&splitBit != 0 {
			sibling.pairs = append(sibling.pairs, p)
		} else {
			b.pairs = append(b.pairs, p)
		}
	}
}
