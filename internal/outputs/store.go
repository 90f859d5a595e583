// Package outputs holds the values published by completed stack units for
// consumption by the templates of their dependents.
package outputs

import "fmt"

// DuplicatePublishError is returned when a (unit, name) key is published
// twice in one run. Outputs are write-once regardless of value equality.
type DuplicatePublishError struct {
	UnitID string
	Name   string
}

func (e *DuplicatePublishError) Error() string {
	return fmt.Sprintf("output %s.%s was already published", e.UnitID, e.Name)
}

// MissingOutputError is returned when a consumer asks for an output that its
// producer never published, or that no declared dependency produces.
type MissingOutputError struct {
	UnitID string
	Name   string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("output %s.%s is not available", e.UnitID, e.Name)
}

type key struct {
	unitID string
	name   string
}

// Store is the run-scoped output table. It is owned by a single
// orchestration driver for the lifetime of one run, so it carries no lock.
type Store struct {
	values map[key]string
}

func NewStore() *Store {
	return &Store{
		values: make(map[key]string),
	}
}

// Publish records a value. Each (unitID, name) key may be published exactly
// once; the value is immutable for the rest of the run.
func (s *Store) Publish(unitID, name, value string) error {
	k := key{unitID: unitID, name: name}
	if _, exists := s.values[k]; exists {
		return &DuplicatePublishError{UnitID: unitID, Name: name}
	}
	s.values[k] = value
	return nil
}

// Resolve returns the value published under (unitID, name).
func (s *Store) Resolve(unitID, name string) (string, error) {
	v, ok := s.values[key{unitID: unitID, name: name}]
	if !ok {
		return "", &MissingOutputError{UnitID: unitID, Name: name}
	}
	return v, nil
}

// ByUnit returns every output published by a unit. Useful for reports.
func (s *Store) ByUnit(unitID string) map[string]string {
	out := make(map[string]string)
	for k, v := range s.values {
		if k.unitID == unitID {
			out[k.name] = v
		}
	}
	return out
}

// Len returns the number of published outputs.
func (s *Store) Len() int {
	return len(s.values)
}
