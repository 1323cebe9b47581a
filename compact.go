// Package compact implements a mark-and-release heap for object graphs. The
// layout of every stored type is discovered at runtime from a throwaway probe
// instance, so the collector can traverse the graph without hand-written
// schemas, and all external roots reach their objects through stable
// indirection cells, so a future compactor could relocate objects by
// repointing the cells in place.
package compact

import (
	"reflect"
	"unsafe"

	"github.com/outofforest/photon"

	"github.com/outofforest/compact/heap"
)

// Heap is used to allocate and collect objects.
type Heap struct {
	heap *heap.Heap
}

// New returns a new heap with one object page and one handle page preallocated.
func New() (*Heap, error) {
	h, err := heap.New()
	if err != nil {
		return nil, err
	}
	return &Heap{heap: h}, nil
}

// Collect synchronously reclaims every slot not reachable from a live handle.
func (h *Heap) Collect() error {
	return h.heap.Collect()
}

// Alloc allocates a zero-initialized, heap-resident instance of T. The first
// allocation of each type builds its descriptor, so the probe construction is
// guaranteed to complete before any real instance is seen by the collector.
// T must fit in a single object slot and any object it should keep alive must
// be referenced through a Ref field.
func Alloc[T comparable](h *Heap) (*T, error) {
	var v T
	d, err := h.heap.Types().Register(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}

	b, err := h.heap.Allocate(unsafe.Sizeof(v), d.ID)
	if err != nil {
		return nil, err
	}

	return photon.NewFromBytes[T](b).V, nil
}
