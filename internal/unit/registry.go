package unit

import "fmt"

// DuplicateUnitError is returned when a unit id is registered twice.
type DuplicateUnitError struct {
	ID string
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("unit %q is already registered", e.ID)
}

// UnknownUnitError is returned when an edge references an unregistered unit.
type UnknownUnitError struct {
	ID string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unit %q is not registered", e.ID)
}

// Registry holds the declared set of units and their depends-on edges.
// It stores and looks up; ordering and validation are the scheduler's job.
type Registry struct {
	units map[string]*Unit
	order []string // registration order, the scheduler's tie-break
}

func NewRegistry() *Registry {
	return &Registry{
		units: make(map[string]*Unit),
	}
}

// Register adds a unit. The id must be unique within the registry.
func (r *Registry) Register(u *Unit) error {
	if _, exists := r.units[u.ID]; exists {
		return &DuplicateUnitError{ID: u.ID}
	}
	r.units[u.ID] = u
	r.order = append(r.order, u.ID)
	return nil
}

// AddEdge declares that from depends on to. Both units must already be
// registered. Adding an existing edge is a no-op.
func (r *Registry) AddEdge(from, to string) error {
	src, ok := r.units[from]
	if !ok {
		return &UnknownUnitError{ID: from}
	}
	if _, ok := r.units[to]; !ok {
		return &UnknownUnitError{ID: to}
	}
	if !src.DependsOnUnit(to) {
		src.DependsOn = append(src.DependsOn, to)
	}
	return nil
}

// Get looks up a unit by id.
func (r *Registry) Get(id string) (*Unit, bool) {
	u, ok := r.units[id]
	return u, ok
}

// All returns every registered unit. No ordering guarantee.
func (r *Registry) All() []*Unit {
	units := make([]*Unit, 0, len(r.units))
	for _, u := range r.units {
		units = append(units, u)
	}
	return units
}

// Ordered returns units in registration order.
func (r *Registry) Ordered() []*Unit {
	units := make([]*Unit, 0, len(r.order))
	for _, id := range r.order {
		units = append(units, r.units[id])
	}
	return units
}

// Index returns the registration position of a unit id, or -1.
func (r *Registry) Index(id string) int {
	for i, existing := range r.order {
		if existing == id {
			return i
		}
	}
	return -1
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	return len(r.units)
}
