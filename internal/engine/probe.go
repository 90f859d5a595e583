package engine

import (
	"context"
	"fmt"
	"time"
)

// ProbeTimeoutError is returned when a unit never reached ready within its
// timeout budget.
type ProbeTimeoutError struct {
	UnitID  string
	Timeout time.Duration
}

func (e *ProbeTimeoutError) Error() string {
	return fmt.Sprintf("unit %q did not become ready within %s", e.UnitID, e.Timeout)
}

// TerminalFailureError is returned when the status source reports a failure
// that will not self-heal by waiting longer (a malformed manifest, a stack
// rollback). It aborts the run and is never retried.
type TerminalFailureError struct {
	UnitID string
	Reason string
}

func (e *TerminalFailureError) Error() string {
	return fmt.Sprintf("unit %q failed terminally: %s", e.UnitID, e.Reason)
}

// Prober polls a status source until an applied unit is observably ready.
type Prober struct {
	// Interval is the wait between status queries.
	Interval time.Duration

	// MaxQueryRetries bounds consecutive status-source errors tolerated
	// within the timeout budget. Query errors mean the source itself was
	// unreachable, not that the unit is unhealthy.
	MaxQueryRetries int
}

// Wait polls source until the unit reports ready, reports a terminal
// failure, the timeout elapses, or ctx is cancelled. The first query is
// issued immediately.
func (p *Prober) Wait(ctx context.Context, unitID string, source StatusSource, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	queryFailures := 0

	for {
		probe, err := source.Query(ctx, unitID)
		switch {
		case err != nil:
			queryFailures++
			if queryFailures > p.MaxQueryRetries {
				return fmt.Errorf("status source for unit %q failed %d times: %w", unitID, queryFailures, err)
			}
		case probe.State == StateReady:
			return nil
		case probe.State == StateTerminalFailure:
			return &TerminalFailureError{UnitID: unitID, Reason: probe.Reason}
		default:
			queryFailures = 0
		}

		if time.Now().After(deadline) {
			return &ProbeTimeoutError{UnitID: unitID, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("probe cancelled for unit %q: %w", unitID, ctx.Err())
		case <-time.After(p.Interval):
		}
	}
}
