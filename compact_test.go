package compact

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/compact/heap"
)

type listNode struct {
	data int64
	next Ref[listNode]
}

func TestLinkedListEndToEnd(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	// Build a 10-node list rooted by a single head handle.
	first, err := Alloc[listNode](h)
	requireT.NoError(err)
	head, err := NewHandle(first)
	requireT.NoError(err)

	addresses := map[uintptr]struct{}{
		uintptr(unsafe.Pointer(first)): {},
	}
	tail := first
	for i := int64(1); i < 10; i++ {
		n, err := Alloc[listNode](h)
		requireT.NoError(err)
		n.data = i
		tail.next.Set(n)
		tail = n
		addresses[uintptr(unsafe.Pointer(n))] = struct{}{}
	}
	requireT.Len(addresses, 10)

	requireT.NoError(h.Collect())

	// All 10 nodes survived with data in original order.
	var count int64
	for n := head.Get(); n != nil; n = n.next.Get() {
		requireT.Equal(count, n.data)
		requireT.Contains(addresses, uintptr(unsafe.Pointer(n)))
		count++
	}
	requireT.EqualValues(10, count)

	// Releasing the sole root frees the whole list on the next collection.
	requireT.NoError(head.Release())
	requireT.NoError(h.Collect())

	reused := map[uintptr]struct{}{}
	for i := 0; i < 10; i++ {
		n, err := Alloc[listNode](h)
		requireT.NoError(err)
		reused[uintptr(unsafe.Pointer(n))] = struct{}{}
	}
	requireT.Equal(addresses, reused)
}

func TestAllocReturnsZeroedInstance(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	n, err := Alloc[listNode](h)
	requireT.NoError(err)
	n.data = 7
	n.next.Set(n)

	requireT.NoError(h.Collect())

	m, err := Alloc[listNode](h)
	requireT.NoError(err)
	requireT.Zero(m.data)
	requireT.Nil(m.next.Get())
}

func TestAllocRejectsOversizedType(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	_, err = Alloc[[64]byte](h)
	requireT.ErrorIs(err, heap.ErrCapacityExceeded)
}

func TestDescriptorBuiltOncePerType(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	_, err = Alloc[listNode](h)
	requireT.NoError(err)
	d1, err := h.heap.Types().Register(reflect.TypeOf(listNode{}))
	requireT.NoError(err)

	_, err = Alloc[listNode](h)
	requireT.NoError(err)
	d2, err := h.heap.Types().Register(reflect.TypeOf(listNode{}))
	requireT.NoError(err)

	requireT.Same(d1, d2)
}

func TestHandleStability(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	obj, err := Alloc[listNode](h)
	requireT.NoError(err)
	handle, err := NewHandle(obj)
	requireT.NoError(err)

	// Mutating the object directly is visible through the handle, both reach
	// the same underlying storage.
	obj.data = 123
	requireT.Same(obj, handle.Get())
	requireT.EqualValues(123, handle.Get().data)
}

func TestHandlesOwnIndependentCells(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	a, err := Alloc[listNode](h)
	requireT.NoError(err)
	b, err := Alloc[listNode](h)
	requireT.NoError(err)

	h1, err := NewHandle(a)
	requireT.NoError(err)
	h2, err := NewHandle(a)
	requireT.NoError(err)

	// Repointing one handle never affects the other.
	requireT.NoError(h2.Set(b))
	requireT.Same(a, h1.Get())
	requireT.Same(b, h2.Get())
}

func TestHandleSetNilKeepsCell(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	obj, err := Alloc[listNode](h)
	requireT.NoError(err)
	handle, err := NewHandle(obj)
	requireT.NoError(err)

	requireT.NoError(handle.Set(nil))
	requireT.Nil(handle.Get())

	requireT.NoError(handle.Set(obj))
	requireT.Same(obj, handle.Get())
}

func TestEmptyHandleAllocatesCellOnFirstSet(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	obj, err := Alloc[listNode](h)
	requireT.NoError(err)
	obj.data = 5

	handle, err := NewHandle[listNode](nil)
	requireT.NoError(err)
	requireT.Nil(handle.Get())

	requireT.NoError(handle.Set(obj))
	requireT.NoError(h.Collect())
	requireT.EqualValues(5, handle.Get().data)
}

func TestHandleFromReferenceField(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	a, err := Alloc[listNode](h)
	requireT.NoError(err)
	b, err := Alloc[listNode](h)
	requireT.NoError(err)
	a.next.Set(b)

	handle, err := NewHandle[listNode](nil)
	requireT.NoError(err)
	requireT.NoError(handle.SetRef(a.next))
	requireT.Same(b, handle.Get())
}

func TestRefCopiesAreIndependent(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	a, err := Alloc[listNode](h)
	requireT.NoError(err)
	b, err := Alloc[listNode](h)
	requireT.NoError(err)

	var r1 Ref[listNode]
	r1.Set(a)
	r2 := r1
	r2.Set(b)

	requireT.Same(a, r1.Get())
	requireT.Same(b, r2.Get())
}

func TestNewHandleRejectsUnmanagedPointer(t *testing.T) {
	requireT := require.New(t)

	_, err := NewHandle(&listNode{})
	requireT.ErrorIs(err, heap.ErrInvariantViolated)
}

func TestReleasedHandleIsEmpty(t *testing.T) {
	requireT := require.New(t)

	h, err := New()
	requireT.NoError(err)

	obj, err := Alloc[listNode](h)
	requireT.NoError(err)
	handle, err := NewHandle(obj)
	requireT.NoError(err)

	requireT.NoError(handle.Release())
	requireT.Nil(handle.Get())

	// Releasing twice is a no-op, the cell has already been returned.
	requireT.NoError(handle.Release())
}
