package compact

import (
	"unsafe"

	"github.com/outofforest/compact/typedesc"
)

var _ typedesc.Reference = Ref[struct{}]{}

// Ref is a reference-bearing field declared inside a heap-resident type to form
// an edge of the object graph. The collector finds Ref fields through the type's
// descriptor, a Ref does not keep anything alive unless its owner is reachable.
// Ref values copy freely, copying one copies the edge.
type Ref[T any] struct {
	ptr uintptr
}

// Get returns the referenced object, or nil.
func (r Ref[T]) Get() *T {
	if r.ptr == 0 {
		return nil
	}
	//nolint:govet // object memory is kept alive by the page directory
	return (*T)(unsafe.Pointer(r.ptr))
}

// Set points the reference at the object. Passing nil clears the edge.
func (r *Ref[T]) Set(obj *T) {
	if obj == nil {
		r.ptr = 0
		return
	}
	r.ptr = uintptr(unsafe.Pointer(obj))
}

// Target implements typedesc.Reference.
func (r Ref[T]) Target() uintptr {
	return r.ptr
}
