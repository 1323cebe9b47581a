package heap

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/compact/typedesc"
)

var zeroSlot = make([]byte, SlotSize)

// Heap owns all object and handle pages. Allocation, marking and collection are
// fully synchronous and single-threaded, a collection runs to completion on the
// calling goroutine and may be triggered by an allocation when all pages are
// exhausted.
type Heap struct {
	types *typedesc.Registry

	pages       []*ObjectPage
	handlePages []*HandlePage

	cursorPage int
	cursorSlot int

	marking []uintptr
}

// New creates a heap with one object page and one handle page preallocated.
func New() (*Heap, error) {
	h := &Heap{
		types: typedesc.NewRegistry(),
	}
	if err := h.addObjectPage(); err != nil {
		return nil, err
	}
	if err := h.addHandlePage(); err != nil {
		return nil, err
	}
	return h, nil
}

// Types returns the descriptor registry of the heap.
func (h *Heap) Types() *typedesc.Registry {
	return h.types
}

func (h *Heap) addObjectPage() error {
	p, err := newObjectPage(h)
	if err != nil {
		return err
	}
	h.pages = append(h.pages, p)
	return nil
}

func (h *Heap) addHandlePage() error {
	p, err := newHandlePage(h)
	if err != nil {
		return err
	}
	h.handlePages = append(h.handlePages, p)
	return nil
}

// Allocate hands out a zeroed slot tagged with the type ID. When no free slot is
// left it first collects, and only if the heap is still full appends a new page.
func (h *Heap) Allocate(size uintptr, tid typedesc.ID) ([]byte, error) {
	if size == 0 || size > SlotSize {
		return nil, errors.Wrapf(ErrCapacityExceeded,
			"object of %d bytes does not fit the slot size %d", size, SlotSize)
	}
	if tid == typedesc.None {
		return nil, errors.Wrap(ErrInvariantViolated, "allocation without a type tag")
	}

	if b := h.findFree(tid); b != nil {
		return b, nil
	}
	if err := h.Collect(); err != nil {
		return nil, err
	}
	if b := h.findFree(tid); b != nil {
		return b, nil
	}
	if err := h.addObjectPage(); err != nil {
		return nil, err
	}
	b := h.findFree(tid)
	if b == nil {
		return nil, errors.Wrap(ErrInvariantViolated, "freshly appended page has no free slot")
	}
	return b, nil
}

// findFree advances the bump cursor to the next clear alloc bit, claims the slot
// and zeroes it. The cursor never revisits slots between collections, it is reset
// only when a collection completes.
func (h *Heap) findFree(tid typedesc.ID) []byte {
	for h.cursorPage < len(h.pages) {
		p := h.pages[h.cursorPage]
		for h.cursorSlot < SlotsPerPage {
			slot := h.cursorSlot
			h.cursorSlot++
			if p.alloc.isSet(slot) {
				continue
			}
			p.alloc.set(slot)
			p.types[slot] = tid
			b := p.slotBytes(slot)
			copy(b, zeroSlot)
			return b
		}
		h.cursorSlot = 0
		h.cursorPage++
	}
	return nil
}

// AllocateCell hands out an indirection cell pointing at the target, appending a
// new handle page when all existing ones are full.
func (h *Heap) AllocateCell(target uintptr) (*Cell, error) {
	for _, p := range h.handlePages {
		c, err := p.allocate(target)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}

	if err := h.addHandlePage(); err != nil {
		return nil, err
	}
	c, err := h.handlePages[len(h.handlePages)-1].allocate(target)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.Wrap(ErrInvariantViolated, "freshly appended handle page has no free cell")
	}
	return c, nil
}

// Collect marks every object transitively reachable from the allocated handle
// cells and makes all other slots available for reuse. Unreachable slots are not
// zeroed here, they are zeroed when handed out again.
func (h *Heap) Collect() error {
	if len(h.marking) != 0 {
		return errors.Wrap(ErrInvariantViolated, "marking stack is not empty")
	}
	if err := h.types.Verify(); err != nil {
		return err
	}

	for _, p := range h.handlePages {
		for i := uint32(1); i < p.begin; i++ {
			c := &p.cells[i]
			if !c.Allocated() {
				continue
			}
			target := c.Target()
			if target == 0 {
				continue
			}
			if err := h.mark(target); err != nil {
				return errors.Wrapf(err, "root cell %d on page 0x%x", i, p.mem.Base)
			}
		}
	}

	for len(h.marking) > 0 {
		addr := h.marking[len(h.marking)-1]
		h.marking = h.marking[:len(h.marking)-1]
		if err := h.markChildren(addr); err != nil {
			return err
		}
	}

	for _, p := range h.pages {
		p.alloc = p.marked
		p.marked.clear()
	}
	h.cursorPage = 0
	h.cursorSlot = 0

	return nil
}

// mark sets the mark bit of the object and schedules it for child enumeration.
// An object already marked is never pushed again, which bounds the worklist and
// guarantees termination.
func (h *Heap) mark(addr uintptr) error {
	p, slot, err := h.resolve(addr)
	if err != nil {
		return err
	}
	if p.marked.isSet(slot) {
		return nil
	}
	p.marked.set(slot)
	h.marking = append(h.marking, addr)
	return nil
}

func (h *Heap) markChildren(addr uintptr) error {
	p, slot, err := h.resolve(addr)
	if err != nil {
		return err
	}

	d, err := h.types.Lookup(p.types[slot])
	if err != nil {
		return errors.Wrapf(ErrInvariantViolated,
			"allocated slot 0x%x has no valid type tag: %s", addr, err)
	}

	for _, offset := range d.Offsets() {
		//nolint:govet // object memory is kept alive by the page directory
		child := *(*uintptr)(unsafe.Pointer(addr + offset))
		if child == 0 {
			continue
		}
		if err := h.mark(child); err != nil {
			return errors.Wrapf(err, "child at offset %d of object 0x%x", offset, addr)
		}
	}
	return nil
}

// resolve masks the address down to its page and rejects anything that is not a
// live object of this heap: foreign addresses, misaligned interior pointers and
// pointers into free slots.
func (h *Heap) resolve(addr uintptr) (*ObjectPage, int, error) {
	p, exists := objectPageOf(addr)
	if !exists {
		return nil, 0, errors.Wrapf(ErrInvariantViolated,
			"address 0x%x is outside managed pages", addr)
	}
	if p.heap != h {
		return nil, 0, errors.Wrapf(ErrInvariantViolated,
			"address 0x%x belongs to a different heap", addr)
	}
	offset := addr - p.mem.Base
	if offset%SlotSize != 0 {
		return nil, 0, errors.Wrapf(ErrInvariantViolated,
			"address 0x%x does not point at a slot base", addr)
	}
	slot := int(offset / SlotSize)
	if !p.alloc.isSet(slot) {
		return nil, 0, errors.Wrapf(ErrInvariantViolated,
			"address 0x%x points at a free slot", addr)
	}
	return p, slot, nil
}
