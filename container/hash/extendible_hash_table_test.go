package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtendibleHashTableInsertFindRemove(t *testing.T) {
	table := NewExtendibleHashTable[string, int](4, HashString)

	table.Insert("a", 1)
	table.Insert("b", 2)
	table.Insert("c", 3)

	v, ok := table.Find("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = table.Find("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = table.Find("missing")
	assert.False(t, ok)

	assert.True(t, table.Remove("a"))
	assert.False(t, table.Remove("a"))
	_, ok = table.Find("a")
	assert.False(t, ok)
}

func TestExtendibleHashTableOverwrite(t *testing.T) {
	table := NewExtendibleHashTable[int, string](4, HashInt32Key)

	table.Insert(1, "first")
	table.Insert(1, "second")

	v, ok := table.Find(1)
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

// identityHash maps an int key to itself, so the scenario below can
// reason about exact directory/bucket layout instead of murmur3's output.
func identityHash(i int) uint32 { return uint32(i) }

// TestExtendibleHashTableSplit is the spec's split scenario run with
// bucketSize=1 instead of 2 (see DESIGN.md): insert four keys whose low two bits are all distinct;
// global depth should grow from 0 to 2 and there should be four distinct
// buckets, one key each.
func TestExtendibleHashTableSplit(t *testing.T) {
	table := NewExtendibleHashTable[int, int](1, identityHash)

	for i := 0; i < 4; i++ {
		table.Insert(i, i*10)
	}

	assert.Equal(t, uint32(2), table.GlobalDepth())
	assert.Equal(t, 4, table.NumBuckets())

	for i := 0; i < 4; i++ {
		v, ok := table.Find(i)
		assert.True(t, ok)
		assert.Equal(t, i*10, v)
	}
}

// TestExtendibleHashTableLocalDepthInvariant checks property 3 from the
// spec: every key in a bucket hashes to the same low-L bits as the
// directory index it's reachable from.
func TestExtendibleHashTableLocalDepthInvariant(t *testing.T) {
	table := NewExtendibleHashTable[int, int](2, HashInt32Key)
	for i := 0; i < 32; i++ {
		table.Insert(i, i)
	}

	for i, b := range table.directory {
		local := b.localDepth
		mask := uint32(1)<<local - 1
		for cur := b; cur != nil; cur = cur.overflow {
			for _, p := range cur.pairs {
				assert.Equal(t, uint32(i)&mask, HashInt32Key(p.key)&mask)
			}
		}
	}
}

func HashInt32Key(v int) uint32 {
	return HashInt32(int32(v))
}
