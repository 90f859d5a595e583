package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strati-io/strati/internal/unit"
)

// CycleDetectedError carries the ids of the units left unresolved after the
// topological sort, i.e. the units participating in (or downstream of)
// a dependency cycle. Never retried.
type CycleDetectedError struct {
	UnitIDs []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dependency cycle detected among units: %s", strings.Join(e.UnitIDs, ", "))
}

// UnknownDependencyError is raised at schedule time when a unit depends on
// an id that was never registered.
type UnknownDependencyError struct {
	UnitID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("unit %q depends on unknown unit %q", e.UnitID, e.DependencyID)
}

// Schedule is a valid application order over the registered units, plus its
// exact reverse for teardown. The reverse is never recomputed independently,
// which guarantees a dependency is never deleted before its dependents.
type Schedule struct {
	order   []string
	reverse []string
}

// BuildSchedule computes a topological order over the registry using Kahn's
// algorithm. Among units whose dependencies are all resolved, ascending
// registration order wins, so the output is deterministic for identical
// input.
func BuildSchedule(reg *unit.Registry) (*Schedule, error) {
	units := reg.Ordered()

	index := make(map[string]int, len(units))
	for i, u := range units {
		index[u.ID] = i
	}

	// In-degree per unit, and reverse edges so completing a unit can
	// release its dependents.
	inDegree := make(map[string]int, len(units))
	dependents := make(map[string][]string, len(units))
	for _, u := range units {
		inDegree[u.ID] = 0
	}
	for _, u := range units {
		for _, dep := range u.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, &UnknownDependencyError{UnitID: u.ID, DependencyID: dep}
			}
			inDegree[u.ID]++
			dependents[dep] = append(dependents[dep], u.ID)
		}
	}

	var ready []string
	for _, u := range units {
		if inDegree[u.ID] == 0 {
			ready = append(ready, u.ID)
		}
	}

	order := make([]string, 0, len(units))
	for len(ready) > 0 {
		// Extract the earliest-registered ready unit.
		best := 0
		for i := 1; i < len(ready); i++ {
			if index[ready[i]] < index[ready[best]] {
				best = i
			}
		}
		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, id)

		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(units) {
		var remaining []string
		scheduled := make(map[string]bool, len(order))
		for _, id := range order {
			scheduled[id] = true
		}
		for _, u := range units {
			if !scheduled[u.ID] {
				remaining = append(remaining, u.ID)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleDetectedError{UnitIDs: remaining}
	}

	reverse := make([]string, len(order))
	for i, id := range order {
		reverse[len(order)-1-i] = id
	}

	return &Schedule{order: order, reverse: reverse}, nil
}

// ApplyOrder returns unit ids in dependency-respecting application order.
func (s *Schedule) ApplyOrder() []string {
	return s.order
}

// TeardownOrder returns the exact reverse of the application order.
func (s *Schedule) TeardownOrder() []string {
	return s.reverse
}
