package typedesc

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Registry maps types to their descriptors. Descriptors are built lazily, on the
// first registration of each type, and are immutable afterwards. Registration is
// the only guarded operation, everything else on the heap is single-threaded.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Descriptor
	byID   []*Descriptor
}

// NewRegistry creates new registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: map[reflect.Type]*Descriptor{},
	}
}

// Register returns the descriptor of the type, building it if the type is seen for
// the first time. Registering the same type again returns the already finalized
// descriptor unchanged.
func (r *Registry) Register(t reflect.Type) (*Descriptor, error) {
	r.mu.RLock()
	d, exists := r.byType[t]
	r.mu.RUnlock()
	if exists {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, exists := r.byType[t]; exists {
		return d, nil
	}

	d = &Descriptor{
		ID:   ID(len(r.byID) + 1),
		Type: t,
		Size: t.Size(),
	}
	if err := discover(d); err != nil {
		return nil, err
	}
	d.finalize()

	r.byType[t] = d
	r.byID = append(r.byID, d)

	return d, nil
}

// Lookup returns the descriptor registered under the ID.
func (r *Registry) Lookup(id ID) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == None || int(id) > len(r.byID) {
		return nil, errors.Errorf("no descriptor registered under ID %d", id)
	}
	return r.byID[id-1], nil
}

// Verify checks the integrity checksum of every registered descriptor.
func (r *Registry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.byID {
		if err := d.Verify(); err != nil {
			return err
		}
	}
	return nil
}
