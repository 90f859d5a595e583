// Package static is an in-memory collaborator set. It backs --dry-run and
// the engine's tests: applies are recorded, outputs are canned, and
// readiness can be scripted per unit.
package static

import (
	"context"
	"fmt"
	"sync"

	"github.com/strati-io/strati/internal/engine"
)

// Provider implements engine.Applier, engine.Deleter and engine.StatusSource.
type Provider struct {
	mu sync.Mutex

	applied      []string
	deleted      []string
	renderedByID map[string]*engine.RenderedUnit

	outputs    map[string]map[string]string
	readyAfter map[string]int
	terminal   map[string]string
	applyErrs  map[string]error
	queryErrs  map[string]int
	polls      map[string]int
}

func New() *Provider {
	return &Provider{
		renderedByID: make(map[string]*engine.RenderedUnit),
		outputs:      make(map[string]map[string]string),
		readyAfter:   make(map[string]int),
		terminal:     make(map[string]string),
		applyErrs:    make(map[string]error),
		queryErrs:    make(map[string]int),
		polls:        make(map[string]int),
	}
}

// SetOutputs cans the outputs a unit publishes once ready.
func (p *Provider) SetOutputs(unitID string, outputs map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputs[unitID] = outputs
}

// SetReadyAfter makes a unit report not-ready for the first n status
// queries. The default is ready on the first query.
func (p *Provider) SetReadyAfter(unitID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readyAfter[unitID] = n
}

// SetTerminal makes a unit's status source report a terminal failure.
func (p *Provider) SetTerminal(unitID, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminal[unitID] = reason
}

// SetApplyError makes Apply fail for a unit.
func (p *Provider) SetApplyError(unitID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyErrs[unitID] = err
}

// SetQueryErrors makes the first n status queries for a unit fail.
func (p *Provider) SetQueryErrors(unitID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryErrs[unitID] = n
}

// Apply records the rendered unit.
func (p *Provider) Apply(_ context.Context, u *engine.RenderedUnit) (*engine.ApplyResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.applyErrs[u.ID]; err != nil {
		return nil, err
	}

	p.applied = append(p.applied, u.ID)
	p.renderedByID[u.ID] = u
	return &engine.ApplyResult{Outputs: p.outputs[u.ID]}, nil
}

// Outputs returns the canned outputs for a unit.
func (p *Provider) Outputs(_ context.Context, unitID string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outputs[unitID], nil
}

// Delete records the deletion. Deleting a unit that was never applied, or
// deleting twice, reports already-absent.
func (p *Provider) Delete(_ context.Context, unitID string) (engine.DeleteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.renderedByID[unitID]; !ok {
		p.deleted = append(p.deleted, unitID)
		return engine.DeleteAlreadyAbsent, nil
	}
	delete(p.renderedByID, unitID)
	p.deleted = append(p.deleted, unitID)
	return engine.DeleteOK, nil
}

// Query follows the scripted behavior: terminal beats everything, then
// query errors, then the ready-after countdown.
func (p *Provider) Query(_ context.Context, unitID string) (engine.Probe, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if reason, ok := p.terminal[unitID]; ok {
		return engine.Probe{State: engine.StateTerminalFailure, Reason: reason}, nil
	}
	if p.queryErrs[unitID] > 0 {
		p.queryErrs[unitID]--
		return engine.Probe{}, fmt.Errorf("status source unreachable for %s", unitID)
	}

	p.polls[unitID]++
	if p.polls[unitID] <= p.readyAfter[unitID] {
		return engine.Probe{State: engine.StateNotReady}, nil
	}
	return engine.Probe{State: engine.StateReady}, nil
}

// ApplyOrder returns unit ids in the order they were applied.
func (p *Provider) ApplyOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.applied...)
}

// DeleteOrder returns unit ids in the order they were deleted.
func (p *Provider) DeleteOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

// Rendered returns the rendered unit recorded for an id.
func (p *Provider) Rendered(unitID string) (*engine.RenderedUnit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.renderedByID[unitID]
	return u, ok
}

// Polls returns how many status queries a unit has answered.
func (p *Provider) Polls(unitID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls[unitID]
}

// Collaborators bundles the provider for every role.
func (p *Provider) Collaborators() engine.Collaborators {
	return engine.Collaborators{Applier: p, Deleter: p, Status: p}
}
