package compact

import (
	"unsafe"

	"github.com/outofforest/compact/heap"
)

// Handle is an external root referencing a heap object through an indirection
// cell. Every handle owns its own cell: constructing a handle from an object
// another handle already points to allocates a fresh cell, and Set rewrites only
// this handle's cell, other handles never observe the change. As long as a
// handle holds a non-nil target, the target and everything reachable from it
// survive collections. Releasing the cell is the duty of the handle's owner.
type Handle[T any] struct {
	cell *heap.Cell
}

// NewHandle creates a handle rooting the object. A nil object produces an empty
// handle occupying no cell until it is set.
func NewHandle[T any](obj *T) (*Handle[T], error) {
	h := &Handle[T]{}
	if obj == nil {
		return h, nil
	}
	if err := h.Set(obj); err != nil {
		return nil, err
	}
	return h, nil
}

// Get returns the object the handle currently points to, or nil.
func (h *Handle[T]) Get() *T {
	if h.cell == nil {
		return nil
	}
	target := h.cell.Target()
	if target == 0 {
		return nil
	}
	//nolint:govet // object memory is kept alive by the page directory
	return (*T)(unsafe.Pointer(target))
}

// Set points the handle at the object, rewriting the handle's own cell in place.
// Passing nil clears the target but keeps the cell. Setting an empty handle
// allocates a cell from the heap owning the object.
func (h *Handle[T]) Set(obj *T) error {
	if obj == nil {
		if h.cell != nil {
			h.cell.SetTarget(0)
		}
		return nil
	}

	addr := uintptr(unsafe.Pointer(obj))
	owner, err := heap.OwnerOf(addr)
	if err != nil {
		return err
	}

	if h.cell != nil {
		h.cell.SetTarget(addr)
		return nil
	}

	cell, err := owner.AllocateCell(addr)
	if err != nil {
		return err
	}
	h.cell = cell
	return nil
}

// SetRef points the handle at the object a reference field points to.
func (h *Handle[T]) SetRef(r Ref[T]) error {
	return h.Set(r.Get())
}

// Release returns the handle's cell to its page's free list and empties the
// handle. The object stops being rooted by this handle, cells are never
// reclaimed automatically.
func (h *Handle[T]) Release() error {
	if h.cell == nil {
		return nil
	}
	if err := heap.FreeCell(h.cell); err != nil {
		return err
	}
	h.cell = nil
	return nil
}
