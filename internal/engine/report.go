package engine

import (
	"fmt"
	"strings"

	"github.com/strati-io/strati/internal/unit"
)

// UnitReport is the final status of one unit after a run.
type UnitReport struct {
	ID     string
	Kind   unit.Kind
	Status unit.Status
	Err    error
}

// RunReport summarizes one provision or teardown invocation, in execution
// order. Err is the error that ended the run, nil on full success.
type RunReport struct {
	Units []UnitReport
	Err   error
}

func (r *RunReport) add(u *unit.Unit, status unit.Status, err error) {
	r.Units = append(r.Units, UnitReport{ID: u.ID, Kind: u.Kind, Status: status, Err: err})
}

// Failed returns the reports of units that ended in a failed state.
func (r *RunReport) Failed() []UnitReport {
	var failed []UnitReport
	for _, ur := range r.Units {
		if ur.Status == unit.StatusFailed {
			failed = append(failed, ur)
		}
	}
	return failed
}

// String renders a one-line-per-unit summary.
func (r *RunReport) String() string {
	var b strings.Builder
	for _, ur := range r.Units {
		if ur.Err != nil {
			fmt.Fprintf(&b, "%-12s %-10s %s (%v)\n", ur.ID, ur.Kind, ur.Status, ur.Err)
			continue
		}
		fmt.Fprintf(&b, "%-12s %-10s %s\n", ur.ID, ur.Kind, ur.Status)
	}
	return b.String()
}
