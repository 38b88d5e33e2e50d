package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUReplacer(t *testing.T) {
	replacer := NewLRUReplacer()

	// Scenario: insert six elements.
	replacer.Insert(1)
	replacer.Insert(2)
	replacer.Insert(3)
	replacer.Insert(4)
	replacer.Insert(5)
	replacer.Insert(6)
	assert.Equal(t, 6, replacer.Size())

	// Scenario: re-inserting an already-tracked frame moves it to the tail
	// instead of creating a duplicate entry.
	replacer.Insert(1)
	assert.Equal(t, 6, replacer.Size())

	// Scenario: pull three victims. 1 moved to the tail above, so it comes
	// out after 2 and 3.
	victim, ok := replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, FrameID(2), victim)
	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, FrameID(3), victim)
	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, FrameID(4), victim)
	assert.Equal(t, 3, replacer.Size())

	// Scenario: erasing a tracked frame removes it from future victimization.
	assert.True(t, replacer.Erase(5))
	assert.False(t, replacer.Erase(5))
	assert.Equal(t, 2, replacer.Size())

	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, FrameID(6), victim)
	victim, ok = replacer.Victim()
	assert.True(t, ok)
	assert.Equal(t, FrameID(1), victim)

	// Scenario: an empty replacer has no victim.
	_, ok = replacer.Victim()
	assert.False(t, ok)
	assert.Equal(t, 0, replacer.Size())
}
