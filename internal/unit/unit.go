// Package unit defines the deployable unit model: the things strati
// provisions (cloud stacks and cluster manifests) and the registry that
// holds them together with their dependency edges.
package unit

import "time"

// Kind classifies a deployable unit.
type Kind string

const (
	// KindStack provisions cloud infrastructure and publishes named outputs.
	KindStack Kind = "stack"
	// KindManifest configures the cluster control plane; it has no outputs,
	// only a readiness signal.
	KindManifest Kind = "manifest"
)

// Status is the lifecycle state of a unit within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRendering Status = "rendering"
	StatusApplying  Status = "applying"
	StatusProbing   Status = "probing"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
	StatusDeleted   Status = "deleted"
)

// InputRef names a value consumed by a unit's template: an output published
// by one of its dependencies. The output name doubles as the placeholder
// token in the template.
type InputRef struct {
	SourceID string `yaml:"from"`
	Name     string `yaml:"name"`
}

// Unit is one deployable item in the dependency graph.
type Unit struct {
	ID        string
	Kind      Kind
	DependsOn []string

	// Template is the raw body: a CloudFormation template for stacks, a
	// (possibly multi-document) Kubernetes manifest for manifest units.
	// It may contain ${name} placeholders.
	Template string

	// Params are stack parameter values. Values may contain placeholders.
	Params map[string]string

	// Outputs are the output names a stack unit declares it will publish.
	// Consumers are validated against this set before anything is applied.
	Outputs []string

	// Inputs are the (source unit, output name) pairs the template's
	// placeholders reference.
	Inputs []InputRef

	// Timeout overrides the per-kind readiness timeout when non-zero.
	// Stateful workloads that mount networked storage warrant more than
	// the manifest default.
	Timeout time.Duration
}

// DeclaresOutput reports whether the unit declares the named output.
func (u *Unit) DeclaresOutput(name string) bool {
	for _, o := range u.Outputs {
		if o == name {
			return true
		}
	}
	return false
}

// DependsOnUnit reports whether id is among the unit's declared dependencies.
func (u *Unit) DependsOnUnit(id string) bool {
	for _, d := range u.DependsOn {
		if d == id {
			return true
		}
	}
	return false
}
