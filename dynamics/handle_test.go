package dynamics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlabAllocRelease(t *testing.T) {
	s := newSlab[string]()

	idx, gen, slot := s.alloc()
	*slot = "first"
	require.Equal(t, 1, s.len())

	got, ok := s.get(idx, gen)
	require.True(t, ok)
	assert.Equal(t, "first", *got)

	s.release(idx)
	assert.Equal(t, 0, s.len())

	// The old handle must not resolve to the recycled slot.
	_, ok = s.get(idx, gen)
	assert.False(t, ok)

	idx2, gen2, slot2 := s.alloc()
	*slot2 = "second"
	assert.Equal(t, idx, idx2, "released slot should be recycled")
	assert.NotEqual(t, gen, gen2)

	_, ok = s.get(idx, gen)
	assert.False(t, ok, "stale generation must stay stale after reuse")
	got, ok = s.get(idx2, gen2)
	require.True(t, ok)
	assert.Equal(t, "second", *got)
}

func TestSlabZeroHandleNeverResolves(t *testing.T) {
	s := newSlab[int]()
	s.alloc()

	_, ok := s.get(0, 0)
	assert.False(t, ok)
	_, ok = s.get(-1, 1)
	assert.False(t, ok)
	_, ok = s.get(99, 1)
	assert.False(t, ok)

	assert.True(t, BodyID{}.IsNil())
	assert.True(t, JointID{}.IsNil())
	assert.True(t, ContactID{}.IsNil())
}

func TestSlabEachAscendingOrder(t *testing.T) {
	s := newSlab[int]()

	var indices []int32
	for i := 0; i < 5; i++ {
		idx, _, v := s.alloc()
		*v = i * 10
		indices = append(indices, idx)
	}
	s.release(indices[1])
	s.release(indices[3])

	var visited []int32
	s.each(func(idx int32, v *int) bool {
		visited = append(visited, idx)
		return true
	})
	assert.Equal(t, []int32{0, 2, 4}, visited)

	// Refilling reuses freed slots; iteration order stays ascending.
	s.alloc()
	s.alloc()
	visited = visited[:0]
	s.each(func(idx int32, v *int) bool {
		visited = append(visited, idx)
		return true
	})
	assert.Equal(t, []int32{0, 1, 2, 3, 4}, visited)
}
