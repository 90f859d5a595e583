package engine

import (
	"time"

	"github.com/strati-io/strati/internal/unit"
)

const (
	// DefaultInterval is the default wait between readiness queries.
	DefaultInterval = 5 * time.Second

	// DefaultStackTimeout covers cloud stacks; cluster creation routinely
	// takes tens of minutes.
	DefaultStackTimeout = 30 * time.Minute

	// DefaultManifestTimeout covers cluster manifests. Stateful workloads
	// that are slower than this set a per-unit override.
	DefaultManifestTimeout = 10 * time.Minute
)

// Options is the engine's configuration surface.
type Options struct {
	// Interval between readiness polls.
	Interval time.Duration

	// Timeouts holds the per-kind readiness timeout. A unit's own Timeout
	// field overrides its kind's entry.
	Timeouts map[unit.Kind]time.Duration

	// MaxQueryRetries bounds consecutive status-source query errors.
	MaxQueryRetries int

	// Retry governs transient apply and delete errors.
	Retry *RetryPolicy
}

// DefaultOptions returns the recognized defaults.
func DefaultOptions() Options {
	return Options{
		Interval: DefaultInterval,
		Timeouts: map[unit.Kind]time.Duration{
			unit.KindStack:    DefaultStackTimeout,
			unit.KindManifest: DefaultManifestTimeout,
		},
		MaxQueryRetries: 3,
		Retry:           DefaultRetryPolicy(),
	}
}

// timeoutFor resolves the probe timeout for a unit.
func (o Options) timeoutFor(u *unit.Unit) time.Duration {
	if u.Timeout > 0 {
		return u.Timeout
	}
	if d, ok := o.Timeouts[u.Kind]; ok && d > 0 {
		return d
	}
	return DefaultStackTimeout
}
