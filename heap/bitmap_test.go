package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmap(t *testing.T) {
	requireT := require.New(t)

	var b bitmap
	for slot := 0; slot < SlotsPerPage; slot++ {
		requireT.False(b.isSet(slot))
	}

	// Both sides of a word boundary.
	for _, slot := range []int{0, 1, 63, 64, SlotsPerPage - 1} {
		b.set(slot)
		requireT.True(b.isSet(slot))
	}
	requireT.False(b.isSet(2))
	requireT.False(b.isSet(62))
	requireT.False(b.isSet(65))

	b.clear()
	for slot := 0; slot < SlotsPerPage; slot++ {
		requireT.False(b.isSet(slot))
	}
}

func TestBitmapAssignmentCopies(t *testing.T) {
	requireT := require.New(t)

	var marked, alloc bitmap
	marked.set(5)
	alloc = marked
	marked.clear()

	requireT.True(alloc.isSet(5))
	requireT.False(marked.isSet(5))
}
