// Package engine implements the dependency-ordered provisioning core: the
// scheduler that orders units, the prober that waits for readiness, and the
// driver that walks the schedule end to end.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/strati-io/strati/internal/logging"
	"github.com/strati-io/strati/internal/outputs"
	"github.com/strati-io/strati/internal/template"
	"github.com/strati-io/strati/internal/unit"
)

// Engine drives provisioning and teardown runs. It holds only configuration
// and collaborators; all run state (registry, schedule, output store) is
// created fresh per invocation.
type Engine struct {
	collabs map[unit.Kind]Collaborators
	opts    Options
}

// New builds an engine with the given per-kind collaborators.
func New(collabs map[unit.Kind]Collaborators, opts Options) *Engine {
	return &Engine{collabs: collabs, opts: opts}
}

// Provision applies every unit in dependency order: resolve inputs, render,
// apply, probe until ready, publish outputs. The first fatal error aborts
// the run; previously applied units stay in place and nothing is rolled
// back automatically.
func (e *Engine) Provision(ctx context.Context, units []*unit.Unit) (*RunReport, error) {
	reg, sched, err := buildRun(units)
	if err != nil {
		return &RunReport{Err: err}, err
	}

	report := &RunReport{}
	store := outputs.NewStore()
	prober := &Prober{Interval: e.opts.Interval, MaxQueryRetries: e.opts.MaxQueryRetries}

	order := sched.ApplyOrder()
	for i, id := range order {
		u, _ := reg.Get(id)

		if err := ctx.Err(); err != nil {
			runErr := fmt.Errorf("provision cancelled: %w", err)
			abort(report, reg, order[i:], runErr)
			return report, runErr
		}

		logging.Info("provisioning unit", "unit", id, "kind", u.Kind)
		if err := e.provisionUnit(ctx, u, store, prober); err != nil {
			report.add(u, unit.StatusFailed, err)
			abort(report, reg, order[i+1:], nil)
			report.Err = err
			return report, err
		}

		logging.Info("unit ready", "unit", id)
		report.add(u, unit.StatusReady, nil)
	}

	return report, nil
}

func (e *Engine) provisionUnit(ctx context.Context, u *unit.Unit, store *outputs.Store, prober *Prober) error {
	collabs, ok := e.collabs[u.Kind]
	if !ok {
		return fmt.Errorf("no collaborators registered for unit kind %q", u.Kind)
	}

	// Rendering: resolve inputs from the output store and substitute.
	inputs := make(map[string]string, len(u.Inputs))
	for _, ref := range u.Inputs {
		v, err := store.Resolve(ref.SourceID, ref.Name)
		if err != nil {
			return err
		}
		inputs[ref.Name] = v
	}

	body, err := template.Render(u.Template, inputs)
	if err != nil {
		return fmt.Errorf("unit %q: %w", u.ID, err)
	}
	params, err := template.RenderParams(u.Params, inputs)
	if err != nil {
		return fmt.Errorf("unit %q: %w", u.ID, err)
	}
	rendered := &RenderedUnit{ID: u.ID, Kind: u.Kind, Body: body, Params: params}

	// Applying: transient backend errors are retried, everything else is
	// fatal and leaves prior units in place.
	var result *ApplyResult
	err = RetryWithBackoff(ctx, e.opts.Retry, func() error {
		var applyErr error
		result, applyErr = collabs.Applier.Apply(ctx, rendered)
		return applyErr
	}, IsTransient)
	if err != nil {
		return fmt.Errorf("apply failed for unit %q: %w", u.ID, err)
	}

	// Probing: wait until the backend reports the unit observably usable.
	if err := prober.Wait(ctx, u.ID, collabs.Status, e.opts.timeoutFor(u)); err != nil {
		return err
	}

	// Outputs exist only for stacks, and only once the stack is ready.
	if u.Kind == unit.KindStack {
		produced := result.Outputs
		if len(produced) == 0 {
			produced, err = collabs.Applier.Outputs(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("reading outputs of unit %q: %w", u.ID, err)
			}
		}
		for name, value := range produced {
			if err := store.Publish(u.ID, name, value); err != nil {
				return err
			}
		}
	}

	return nil
}

// Teardown deletes every unit in the exact reverse of the application
// order. A unit that is already absent counts as deleted. Individual
// failures are recorded and the walk continues, so unrelated units still
// get a deletion attempt.
func (e *Engine) Teardown(ctx context.Context, units []*unit.Unit) (*RunReport, error) {
	reg, sched, err := buildRun(units)
	if err != nil {
		return &RunReport{Err: err}, err
	}

	report := &RunReport{}
	var failures []error

	order := sched.TeardownOrder()
	for i, id := range order {
		u, _ := reg.Get(id)

		if err := ctx.Err(); err != nil {
			runErr := fmt.Errorf("teardown cancelled: %w", err)
			abort(report, reg, order[i:], runErr)
			return report, runErr
		}

		collabs, ok := e.collabs[u.Kind]
		if !ok {
			err := fmt.Errorf("no collaborators registered for unit kind %q", u.Kind)
			report.add(u, unit.StatusFailed, err)
			failures = append(failures, err)
			continue
		}

		logging.Info("deleting unit", "unit", id, "kind", u.Kind)
		var result DeleteResult
		err := RetryWithBackoff(ctx, e.opts.Retry, func() error {
			var delErr error
			result, delErr = collabs.Deleter.Delete(ctx, id)
			return delErr
		}, IsTransient)
		if err != nil {
			err = fmt.Errorf("delete failed for unit %q: %w", id, err)
			logging.Warn("continuing past delete failure", "unit", id, "error", err)
			report.add(u, unit.StatusFailed, err)
			failures = append(failures, err)
			continue
		}

		if result == DeleteAlreadyAbsent {
			logging.Debug("unit already absent", "unit", id)
		}
		report.add(u, unit.StatusDeleted, nil)
	}

	if len(failures) > 0 {
		report.Err = fmt.Errorf("%d unit(s) failed to delete: %w", len(failures), errors.Join(failures...))
	}
	return report, report.Err
}

// Plan validates the unit set and returns its schedule without touching any
// collaborator. The validate and graph commands use it.
func Plan(units []*unit.Unit) (*Schedule, error) {
	_, sched, err := buildRun(units)
	return sched, err
}

// buildRun registers the units, validates input declarations, and computes
// the schedule. Everything here happens before any external call.
func buildRun(units []*unit.Unit) (*unit.Registry, *Schedule, error) {
	reg := unit.NewRegistry()
	for _, u := range units {
		if err := reg.Register(u); err != nil {
			return nil, nil, err
		}
	}

	if err := ValidateInputs(reg); err != nil {
		return nil, nil, err
	}

	sched, err := BuildSchedule(reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, sched, nil
}

// ValidateInputs checks, before execution, that every placeholder a unit's
// template references is covered by a declared input, and that every
// declared input names an output actually produced by one of the unit's
// dependencies. A mis-declared graph is a build-time error, not a runtime
// surprise.
func ValidateInputs(reg *unit.Registry) error {
	for _, u := range reg.Ordered() {
		declared := make(map[string]bool, len(u.Inputs))
		for _, ref := range u.Inputs {
			declared[ref.Name] = true

			src, ok := reg.Get(ref.SourceID)
			if !ok || !u.DependsOnUnit(ref.SourceID) || !src.DeclaresOutput(ref.Name) {
				return &outputs.MissingOutputError{UnitID: ref.SourceID, Name: ref.Name}
			}
		}

		for _, token := range template.Placeholders(u.Template) {
			if !declared[token] {
				return &template.UnresolvedPlaceholderError{Token: token}
			}
		}
		for _, v := range u.Params {
			for _, token := range template.Placeholders(v) {
				if !declared[token] {
					return &template.UnresolvedPlaceholderError{Token: token}
				}
			}
		}
	}
	return nil
}

// abort records the units that will not be attempted.
func abort(report *RunReport, reg *unit.Registry, remaining []string, runErr error) {
	for _, id := range remaining {
		u, _ := reg.Get(id)
		report.add(u, unit.StatusPending, nil)
	}
	if runErr != nil {
		report.Err = runErr
	}
}
