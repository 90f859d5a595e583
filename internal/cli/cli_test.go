package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strati-io/strati/internal/engine"
	"github.com/strati-io/strati/internal/unit"
)

func writeEnvironment(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	envYAML := `environment: dev
region: eu-west-1
units:
  - id: net
    kind: stack
    template: net.json
    outputs:
      - VpcId
  - id: cluster
    kind: stack
    dependsOn:
      - net
    template: cluster.json
    inputs:
      - from: net
        name: VpcId
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "environment.yaml"), []byte(envYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "net.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cluster.json"), []byte(`{"vpc": "${VpcId}"}`), 0o644))
	return filepath.Join(dir, "environment.yaml")
}

func TestLoadEnvironment(t *testing.T) {
	path := writeEnvironment(t)

	env, units, err := loadEnvironment(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "dev", env.Name)
	require.Len(t, units, 2)
	assert.Equal(t, `{"vpc": "${VpcId}"}`, units[1].Template)
}

func TestBuildCollaborators_DryRun(t *testing.T) {
	path := writeEnvironment(t)
	env, units, err := loadEnvironment(context.Background(), path)
	require.NoError(t, err)

	collabs, err := buildCollaborators(context.Background(), env, units, true)
	require.NoError(t, err)
	require.Contains(t, collabs, unit.KindStack)
	require.Contains(t, collabs, unit.KindManifest)

	// A dry run provisions end to end against the in-memory provider,
	// flowing placeholder outputs through dependent templates.
	eng := engine.New(collabs, engineOptions(time.Millisecond))
	report, err := eng.Provision(context.Background(), units)
	require.NoError(t, err)
	require.Len(t, report.Units, 2)
	for _, ur := range report.Units {
		assert.Equal(t, unit.StatusReady, ur.Status)
	}
}

func TestEngineOptions(t *testing.T) {
	opts := engineOptions(0)
	assert.Equal(t, engine.DefaultInterval, opts.Interval)

	opts = engineOptions(2 * time.Second)
	assert.Equal(t, 2*time.Second, opts.Interval)
}
