package heap

import (
	"github.com/outofforest/compact/pkg/pagemem"
	"github.com/outofforest/compact/typedesc"
)

// ObjectPage is a page of fixed-size object slots. It keeps two bitmaps: alloc
// tells which slots hold objects, marked is populated during collection with the
// slots proven reachable and then becomes the new alloc bitmap. Each allocated
// slot additionally carries the type tag of the object stored in it, so the
// collector can enumerate the object's children through the descriptor registry.
type ObjectPage struct {
	heap *Heap
	mem  pagemem.Block

	alloc  bitmap
	marked bitmap
	types  [SlotsPerPage]typedesc.ID
}

func newObjectPage(h *Heap) (*ObjectPage, error) {
	mem, err := pagemem.Reserve(PageSize)
	if err != nil {
		return nil, err
	}

	p := &ObjectPage{
		heap: h,
		mem:  mem,
	}
	registerObjectPage(p)
	return p, nil
}

func (p *ObjectPage) slotAddress(slot int) uintptr {
	return p.mem.Base + uintptr(slot)*SlotSize
}

func (p *ObjectPage) slotBytes(slot int) []byte {
	offset := slot * SlotSize
	return p.mem.Bytes[offset : offset+SlotSize]
}
