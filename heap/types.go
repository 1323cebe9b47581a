package heap

import (
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// PageSize is the size of object and handle pages. Pages are aligned to their
	// size, so masking the low bits off any interior address yields the page base.
	PageSize = 4096

	// SlotSize is the fixed size of an object slot. Allocated objects must fit in
	// a single slot.
	SlotSize = 32

	// SlotsPerPage is the number of object slots on a single page.
	SlotsPerPage = PageSize / SlotSize

	// CellsPerPage is the number of indirection cells on a single handle page.
	CellsPerPage = PageSize / int(unsafe.Sizeof(Cell{}))

	// bitmapWords is the number of words needed to keep one bit per slot.
	bitmapWords = (SlotsPerPage + 63) / 64
)

// ErrCapacityExceeded is wrapped by errors caused by static sizing limits. The
// caller may grow the configuration and retry, the heap content stays intact.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrInvariantViolated is wrapped by errors reported when the heap state
// contradicts an invariant. The heap must be considered corrupted, continuing
// risks writing outside slot bounds.
var ErrInvariantViolated = errors.New("heap invariant violated")
