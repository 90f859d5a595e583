package engine

import (
	"context"

	"github.com/strati-io/strati/internal/unit"
)

// RenderedUnit is a unit after input resolution and template substitution,
// ready to hand to an apply collaborator.
type RenderedUnit struct {
	ID     string
	Kind   unit.Kind
	Body   string
	Params map[string]string
}

// ApplyResult is what an apply collaborator reports back. Outputs may be
// empty when the backend cannot produce them until the unit is ready
// (CloudFormation stack outputs, for example); the driver re-reads them
// through Applier.Outputs once the unit reports ready.
type ApplyResult struct {
	Outputs map[string]string
}

// Applier submits rendered units to an external backend. Apply must be
// idempotent: re-applying unchanged content is a no-op success.
type Applier interface {
	Apply(ctx context.Context, u *RenderedUnit) (*ApplyResult, error)
	Outputs(ctx context.Context, unitID string) (map[string]string, error)
}

// DeleteResult distinguishes an actual deletion from a unit that was
// already gone. Both count as success during teardown.
type DeleteResult int

const (
	DeleteOK DeleteResult = iota
	DeleteAlreadyAbsent
)

// Deleter removes a unit's backing resource.
type Deleter interface {
	Delete(ctx context.Context, unitID string) (DeleteResult, error)
}

// ProbeState is one observation of an applied unit's health.
type ProbeState int

const (
	StateNotReady ProbeState = iota
	StateReady
	StateTerminalFailure
)

func (s ProbeState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateTerminalFailure:
		return "terminal-failure"
	default:
		return "not-ready"
	}
}

// Probe is a single status observation. Reason is set for terminal failures.
type Probe struct {
	State  ProbeState
	Reason string
}

// StatusSource reports whether a unit's resource is actually usable, not
// merely accepted. An error return means the source itself could not be
// queried, which is distinct from the unit being unhealthy.
type StatusSource interface {
	Query(ctx context.Context, unitID string) (Probe, error)
}

// Collaborators bundles the external interfaces for one unit kind.
type Collaborators struct {
	Applier Applier
	Deleter Deleter
	Status  StatusSource
}
