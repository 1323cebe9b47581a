package typedesc

import (
	"encoding/binary"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Descriptor stores the byte offsets of all reference fields of a type. Once
// finalized it never changes, applying the offsets to the address of any instance
// of the type yields the addresses of its reference fields.
type Descriptor struct {
	// ID is the tag the descriptor is registered under.
	ID ID

	// Type is the described type.
	Type reflect.Type

	// Size is the byte size of an instance.
	Size uintptr

	offsets   []uintptr
	checksum  uint64
	finalized bool
}

// Offsets returns the byte offsets of the reference fields.
func (d *Descriptor) Offsets() []uintptr {
	return d.offsets
}

// Finalized tells if the descriptor has been finalized.
func (d *Descriptor) Finalized() bool {
	return d.finalized
}

// Verify recomputes the integrity checksum of the offset table and compares it
// with the one stored at finalization.
func (d *Descriptor) Verify() error {
	if !d.finalized {
		return errors.Errorf("descriptor of %s has not been finalized", d.Type)
	}
	if checksum := checksumOffsets(d.offsets); checksum != d.checksum {
		return errors.Wrapf(ErrCorrupted, "descriptor of %s, computed: %x, stored: %x",
			d.Type, checksum, d.checksum)
	}
	return nil
}

func (d *Descriptor) append(offset uintptr) error {
	if d.finalized {
		return errors.Errorf("descriptor of %s is finalized, offset %d rejected", d.Type, offset)
	}
	if offset+WordSize > d.Size {
		return errors.Errorf("descriptor of %s: offset %d outside instance of %d bytes",
			d.Type, offset, d.Size)
	}
	d.offsets = append(d.offsets, offset)
	return nil
}

func (d *Descriptor) finalize() {
	d.checksum = checksumOffsets(d.offsets)
	d.finalized = true
}

func checksumOffsets(offsets []uintptr) uint64 {
	digest := xxhash.New()
	var buf [8]byte
	for _, offset := range offsets {
		binary.LittleEndian.PutUint64(buf[:], uint64(offset))
		_, _ = digest.Write(buf[:])
	}
	return digest.Sum64()
}

var referenceType = reflect.TypeOf((*Reference)(nil)).Elem()

// discover builds the offset table of a type by constructing a throwaway probe
// instance and subtracting the probe base address from the address of every
// reference field found inside it. Nested and embedded structs as well as arrays
// are walked too, so their reference fields end up in the descriptor of the
// enclosing type, relative to the enclosing type's base.
func discover(d *Descriptor) error {
	probe := reflect.New(d.Type)
	return discoverValue(d, probe.Elem(), probe.Pointer())
}

func discoverValue(d *Descriptor, v reflect.Value, base uintptr) error {
	t := v.Type()
	if t.Implements(referenceType) {
		if t.Size() != WordSize {
			return errors.Errorf("reference field %s must be %d bytes, got: %d",
				t, WordSize, t.Size())
		}
		return d.append(v.UnsafeAddr() - base)
	}

	switch t.Kind() {
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := discoverValue(d, v.Field(i), base); err != nil {
				return err
			}
		}
	case reflect.Array:
		for i := 0; i < t.Len(); i++ {
			if err := discoverValue(d, v.Index(i), base); err != nil {
				return err
			}
		}
	}
	return nil
}
