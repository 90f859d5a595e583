package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strati-io/strati/internal/source"
	"github.com/strati-io/strati/internal/unit"
)

func TestLoad(t *testing.T) {
	env, err := Load("testdata/environment.yaml")
	require.NoError(t, err)

	assert.Equal(t, "staging", env.Name)
	assert.Equal(t, "eu-west-1", env.Region)
	assert.Equal(t, "staging-admin", env.Profile)
	assert.Equal(t, "staging-eks", env.Cluster.Name)
	assert.Equal(t, "testdata", env.BaseDir())

	require.Len(t, env.Units, 3)
	cluster := env.Units[1]
	assert.Equal(t, "cluster", cluster.ID)
	assert.Equal(t, []string{"net"}, cluster.DependsOn)
	assert.Equal(t, "45m", cluster.Timeout)
	assert.Equal(t, []unit.InputRef{
		{SourceID: "net", Name: "VpcId"},
		{SourceID: "net", Name: "SubnetIds"},
	}, cluster.Inputs)
	assert.Equal(t, map[string]string{"Environment": "staging", "VpcId": "${VpcId}"}, cluster.Params)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read environment file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no environment name",
			yaml:    "units:\n  - id: a\n    kind: stack\n    template: t.json\n",
			wantErr: "environment name is required",
		},
		{
			name:    "no units",
			yaml:    "environment: dev\n",
			wantErr: "declares no units",
		},
		{
			name:    "unit without id",
			yaml:    "environment: dev\nunits:\n  - kind: stack\n    template: t.json\n",
			wantErr: "has no id",
		},
		{
			name:    "unknown kind",
			yaml:    "environment: dev\nunits:\n  - id: a\n    kind: helm\n    template: t.json\n",
			wantErr: `unknown kind "helm"`,
		},
		{
			name:    "unit without template",
			yaml:    "environment: dev\nunits:\n  - id: a\n    kind: stack\n",
			wantErr: "has no template",
		},
		{
			name:    "bad timeout",
			yaml:    "environment: dev\nunits:\n  - id: a\n    kind: stack\n    template: t.json\n    timeout: soon\n",
			wantErr: "invalid timeout",
		},
		{
			name:    "not yaml",
			yaml:    "{{{",
			wantErr: "failed to parse environment file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "environment.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildUnits(t *testing.T) {
	env, err := Load("testdata/environment.yaml")
	require.NoError(t, err)

	resolver := source.NewResolver(env.BaseDir(), env.Region, env.Profile)
	units, err := env.BuildUnits(context.Background(), resolver)
	require.NoError(t, err)
	require.Len(t, units, 3)

	net := units[0]
	assert.Equal(t, "net", net.ID)
	assert.Equal(t, unit.KindStack, net.Kind)
	assert.Contains(t, net.Template, "AWS::EC2::VPC")
	assert.Equal(t, []string{"VpcId", "SubnetIds"}, net.Outputs)
	assert.Zero(t, net.Timeout)

	cluster := units[1]
	assert.Equal(t, 45*time.Minute, cluster.Timeout)
	// Placeholders survive loading untouched; rendering happens at apply time.
	assert.Contains(t, cluster.Template, "${SubnetIds}")

	jenkins := units[2]
	assert.Equal(t, unit.KindManifest, jenkins.Kind)
	assert.Contains(t, jenkins.Template, "kind: StatefulSet")
}

func TestBuildUnits_MissingTemplate(t *testing.T) {
	dir := t.TempDir()
	envYAML := "environment: dev\nunits:\n  - id: a\n    kind: stack\n    template: missing.json\n"
	path := filepath.Join(dir, "environment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(envYAML), 0o644))

	env, err := Load(path)
	require.NoError(t, err)

	resolver := source.NewResolver(env.BaseDir(), "", "")
	_, err = env.BuildUnits(context.Background(), resolver)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unit "a"`)
}
