package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed sequence of query results, repeating the
// last entry once the script is exhausted.
type scriptedSource struct {
	script []scriptedQuery
	calls  int
}

type scriptedQuery struct {
	probe Probe
	err   error
}

func (s *scriptedSource) Query(ctx context.Context, unitID string) (Probe, error) {
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	entry := s.script[i]
	return entry.probe, entry.err
}

func fastProber() *Prober {
	return &Prober{Interval: time.Millisecond, MaxQueryRetries: 3}
}

func TestProber_ReadyAfterPolls(t *testing.T) {
	source := &scriptedSource{script: []scriptedQuery{
		{probe: Probe{State: StateNotReady}},
		{probe: Probe{State: StateNotReady}},
		{probe: Probe{State: StateReady}},
	}}

	err := fastProber().Wait(context.Background(), "cluster", source, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)
}

func TestProber_TerminalFailureStopsImmediately(t *testing.T) {
	source := &scriptedSource{script: []scriptedQuery{
		{probe: Probe{State: StateNotReady}},
		{probe: Probe{State: StateTerminalFailure, Reason: "ROLLBACK_COMPLETE"}},
	}}

	err := fastProber().Wait(context.Background(), "net", source, time.Second)
	var terminal *TerminalFailureError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, "net", terminal.UnitID)
	assert.Equal(t, "ROLLBACK_COMPLETE", terminal.Reason)
	assert.Equal(t, 2, source.calls)
}

func TestProber_Timeout(t *testing.T) {
	source := &scriptedSource{script: []scriptedQuery{
		{probe: Probe{State: StateNotReady}},
	}}

	err := fastProber().Wait(context.Background(), "workload", source, 10*time.Millisecond)
	var timeoutErr *ProbeTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "workload", timeoutErr.UnitID)
	assert.Equal(t, 10*time.Millisecond, timeoutErr.Timeout)
}

func TestProber_ToleratesTransientQueryErrors(t *testing.T) {
	source := &scriptedSource{script: []scriptedQuery{
		{err: errors.New("throttled")},
		{err: errors.New("throttled")},
		{probe: Probe{State: StateReady}},
	}}

	err := fastProber().Wait(context.Background(), "cluster", source, time.Second)
	require.NoError(t, err)
}

func TestProber_QueryFailureBudgetExhausted(t *testing.T) {
	boom := errors.New("connection refused")
	source := &scriptedSource{script: []scriptedQuery{{err: boom}}}

	err := fastProber().Wait(context.Background(), "cluster", source, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	// Initial attempt plus MaxQueryRetries.
	assert.Equal(t, 4, source.calls)
}

func TestProber_FailureCountResetsOnSuccessfulQuery(t *testing.T) {
	source := &scriptedSource{script: []scriptedQuery{
		{err: errors.New("throttled")},
		{err: errors.New("throttled")},
		{err: errors.New("throttled")},
		{probe: Probe{State: StateNotReady}},
		{err: errors.New("throttled")},
		{probe: Probe{State: StateReady}},
	}}

	err := fastProber().Wait(context.Background(), "cluster", source, time.Second)
	require.NoError(t, err)
}

func TestProber_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &scriptedSource{script: []scriptedQuery{
		{probe: Probe{State: StateNotReady}},
	}}

	err := fastProber().Wait(ctx, "cluster", source, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
