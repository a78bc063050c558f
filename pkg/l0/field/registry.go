package field

import (
	"fmt"
	"sync"
)

// Registry indexes fields by name and by wire id.
type Registry struct {
	lock   sync.RWMutex
	byName map[string]*Field
	byID   map[byte]*Field
	order  []*Field
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Field),
		byID:   make(map[byte]*Field),
	}
}

// Add registers a field. Neither its name nor its id may be taken.
func (r *Registry) Add(f *Field) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if existing, ok := r.byID[f.id]; ok {
		return fmt.Errorf("%w: %d used by %q", ErrDuplicateID, f.id, existing.name)
	}
	if _, ok := r.byName[f.name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, f.name)
	}
	r.byName[f.name] = f
	r.byID[f.id] = f
	r.order = append(r.order, f)
	return nil
}

// ByName looks up a field by name.
func (r *Registry) ByName(name string) *Field {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.byName[name]
}

// ByID looks up a field by wire id.
func (r *Registry) ByID(id byte) *Field {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.byID[id]
}

// Fields returns all fields in registration order.
func (r *Registry) Fields() []*Field {
	r.lock.RLock()
	defer r.lock.RUnlock()
	fields := make([]*Field, len(r.order))
	copy(fields, r.order)
	return fields
}
