package heap

import (
	"sync"

	"github.com/pkg/errors"
)

// The page directory resolves a masked base address back to the page structure.
// It is the mechanism letting any raw object pointer find its page, and through
// the page's back-reference, the owning heap. Pages live for the lifetime of the
// process, entries are never removed.
var (
	dirMu         sync.RWMutex
	objectPageDir = map[uintptr]*ObjectPage{}
	handlePageDir = map[uintptr]*HandlePage{}
)

func registerObjectPage(p *ObjectPage) {
	dirMu.Lock()
	defer dirMu.Unlock()
	objectPageDir[p.mem.Base] = p
}

func registerHandlePage(p *HandlePage) {
	dirMu.Lock()
	defer dirMu.Unlock()
	handlePageDir[p.mem.Base] = p
}

func objectPageOf(addr uintptr) (*ObjectPage, bool) {
	dirMu.RLock()
	defer dirMu.RUnlock()
	p, exists := objectPageDir[addr&^uintptr(PageSize-1)]
	return p, exists
}

func handlePageOf(addr uintptr) (*HandlePage, bool) {
	dirMu.RLock()
	defer dirMu.RUnlock()
	p, exists := handlePageDir[addr&^uintptr(PageSize-1)]
	return p, exists
}

// OwnerOf returns the heap owning the object the address points to.
func OwnerOf(addr uintptr) (*Heap, error) {
	p, exists := objectPageOf(addr)
	if !exists {
		return nil, errors.Wrapf(ErrInvariantViolated, "address 0x%x is outside managed pages", addr)
	}
	return p.heap, nil
}
