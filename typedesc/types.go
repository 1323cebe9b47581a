package typedesc

import (
	"unsafe"

	"github.com/pkg/errors"
)

// ID identifies a registered type inside a registry. It is stored as the per-slot
// type tag on object pages, so the collector can find the descriptor of any object
// without a per-object pointer.
type ID uint32

// None is the reserved ID tagging slots which never held an object.
const None ID = 0

// WordSize is the size of a reference field. A reference field is a single machine
// word holding the address of the referenced object, or 0.
const WordSize = unsafe.Sizeof(uintptr(0))

// Reference is implemented by field types traversed by the collector. A type
// implementing Reference must be exactly one machine word and that word must hold
// the address of the referenced object, or 0 if it references nothing.
type Reference interface {
	// Target returns the address of the referenced object, or 0.
	Target() uintptr
}

// ErrCorrupted is wrapped by errors reported when a finalized descriptor no longer
// matches its integrity checksum. Collection must not continue in that case.
var ErrCorrupted = errors.New("type descriptor corrupted")
