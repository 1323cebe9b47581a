package pagemem

import (
	"unsafe"

	"github.com/pkg/errors"

	// The heap stores raw addresses of objects living inside blocks reserved here.
	// That is only sound as long as the Go runtime never moves heap allocations.
	_ "go4.org/unsafe/assume-no-moving-gc"
)

// Block is a fixed-size memory block aligned to its own size. Thanks to the alignment,
// the base address of the block owning any interior pointer is computed by masking
// the low bits off that pointer. Blocks are reserved once and kept for the lifetime
// of the process, they are never returned to the runtime.
type Block struct {
	// Base is the aligned address of the first byte of the block.
	Base uintptr

	// Bytes exposes the block content, len(Bytes) is the block size.
	Bytes []byte
}

// Reserve reserves a memory block of the given size, aligned to the size.
// The size must be a positive power of two, otherwise masking interior pointers
// would not yield the block base.
func Reserve(size int) (Block, error) {
	if size <= 0 || size&(size-1) != 0 {
		return Block{}, errors.Errorf("block size must be a positive power of two, got: %d", size)
	}

	// Over-reserve so an aligned region of the requested size always fits.
	buf := make([]byte, 2*size)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	base := (addr + uintptr(size) - 1) &^ (uintptr(size) - 1)
	offset := base - addr

	return Block{
		Base:  base,
		Bytes: buf[offset : offset+uintptr(size)],
	}, nil
}

// Contains tells if the address points inside the block.
func (b Block) Contains(addr uintptr) bool {
	return addr >= b.Base && addr < b.Base+uintptr(len(b.Bytes))
}
