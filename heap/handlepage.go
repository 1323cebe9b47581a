package heap

import (
	"unsafe"

	"github.com/outofforest/photon"
	"github.com/pkg/errors"

	"github.com/outofforest/compact/pkg/pagemem"
)

// Cell is a single indirection slot. Handles refer to objects through cells, so
// a future compactor could move an object and repoint its cell in place without
// invalidating the handles. An allocated cell stores the target address with the
// validity flag in the lowest bit, a free cell stores the index of the next free
// cell on the page, shifted so the flag bit stays clear. Object slots are aligned
// well above 2 bytes, so the flag bit of an allocated cell is never ambiguous.
type Cell struct {
	data uintptr
}

const cellAllocated uintptr = 1

// Allocated tells if the cell holds a target rather than a free-list link.
func (c *Cell) Allocated() bool {
	return c.data&cellAllocated != 0
}

// Target returns the address the cell points to, or 0.
func (c *Cell) Target() uintptr {
	return c.data &^ cellAllocated
}

// SetTarget points the cell at the address, keeping the cell allocated.
func (c *Cell) SetTarget(target uintptr) {
	c.data = target | cellAllocated
}

func (c *Cell) nextFree() uint32 {
	return uint32(c.data >> 1)
}

func (c *Cell) setFree(next uint32) {
	c.data = uintptr(next) << 1
}

// HandlePage is a page of indirection cells with an embedded free list. Cell 0 is
// reserved so that a free-list link of 0 can terminate the list, allocation starts
// at index 1.
type HandlePage struct {
	heap  *Heap
	mem   pagemem.Block
	cells *[CellsPerPage]Cell

	begin    uint32
	freeList uint32
}

func newHandlePage(h *Heap) (*HandlePage, error) {
	mem, err := pagemem.Reserve(PageSize)
	if err != nil {
		return nil, err
	}

	p := &HandlePage{
		heap:  h,
		mem:   mem,
		cells: photon.NewFromBytes[[CellsPerPage]Cell](mem.Bytes).V,
		begin: 1,
	}
	registerHandlePage(p)
	return p, nil
}

// allocate hands out a cell, reusing the free list before advancing the bump
// cursor. It returns nil when the page is full.
func (p *HandlePage) allocate(target uintptr) (*Cell, error) {
	if p.freeList != 0 {
		c := &p.cells[p.freeList]
		if c.Allocated() {
			return nil, errors.Wrapf(ErrInvariantViolated,
				"free-listed cell %d on page 0x%x carries the allocated flag", p.freeList, p.mem.Base)
		}
		p.freeList = c.nextFree()
		c.SetTarget(target)
		return c, nil
	}
	if p.begin < uint32(CellsPerPage) {
		c := &p.cells[p.begin]
		p.begin++
		c.SetTarget(target)
		return c, nil
	}
	return nil, nil
}

func (p *HandlePage) free(c *Cell) error {
	index := (uintptr(unsafe.Pointer(c)) - p.mem.Base) / unsafe.Sizeof(Cell{})
	if index == 0 || uint32(index) >= p.begin {
		return errors.Wrapf(ErrInvariantViolated,
			"cell index %d outside the allocated range of page 0x%x", index, p.mem.Base)
	}
	if !c.Allocated() {
		return errors.Wrapf(ErrInvariantViolated,
			"cell %d on page 0x%x is already free", index, p.mem.Base)
	}
	c.setFree(p.freeList)
	p.freeList = uint32(index)
	return nil
}

// FreeCell returns the cell to the free list of its page. Cells are never
// reclaimed automatically, releasing one is the duty of the handle owning it.
func FreeCell(c *Cell) error {
	addr := uintptr(unsafe.Pointer(c))
	p, exists := handlePageOf(addr)
	if !exists {
		return errors.Wrapf(ErrInvariantViolated, "cell address 0x%x is outside managed handle pages", addr)
	}
	return p.free(c)
}
