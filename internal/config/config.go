// Package config loads the environment file: the declared set of units,
// their dependency edges, and the cloud/cluster coordinates they target.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strati-io/strati/internal/source"
	"github.com/strati-io/strati/internal/unit"
)

// Environment is the top-level document of an environment file.
type Environment struct {
	Name    string     `yaml:"environment"`
	Region  string     `yaml:"region"`
	Profile string     `yaml:"profile"`
	Cluster ClusterRef `yaml:"cluster"`
	Units   []UnitSpec `yaml:"units"`

	// baseDir is the directory of the environment file; relative template
	// paths resolve against it.
	baseDir string
}

// ClusterRef names the EKS cluster that manifest units are applied to.
type ClusterRef struct {
	Name string `yaml:"name"`
}

// UnitSpec is one unit declaration. Template is a reference (file path or
// s3://bucket/key), not the body itself.
type UnitSpec struct {
	ID        string            `yaml:"id"`
	Kind      string            `yaml:"kind"`
	DependsOn []string          `yaml:"dependsOn"`
	Template  string            `yaml:"template"`
	Params    map[string]string `yaml:"params"`
	Outputs   []string          `yaml:"outputs"`
	Inputs    []unit.InputRef   `yaml:"inputs"`
	Timeout   string            `yaml:"timeout"`
}

// Load reads and validates an environment file.
func Load(path string) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment file: %w", err)
	}

	var env Environment
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse environment file: %w", err)
	}
	env.baseDir = filepath.Dir(path)

	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Environment) validate() error {
	if e.Name == "" {
		return fmt.Errorf("environment name is required")
	}
	if len(e.Units) == 0 {
		return fmt.Errorf("environment %q declares no units", e.Name)
	}
	for i, spec := range e.Units {
		if spec.ID == "" {
			return fmt.Errorf("unit #%d has no id", i)
		}
		switch unit.Kind(spec.Kind) {
		case unit.KindStack, unit.KindManifest:
		default:
			return fmt.Errorf("unit %q has unknown kind %q", spec.ID, spec.Kind)
		}
		if spec.Template == "" {
			return fmt.Errorf("unit %q has no template", spec.ID)
		}
		if spec.Timeout != "" {
			if _, err := time.ParseDuration(spec.Timeout); err != nil {
				return fmt.Errorf("unit %q has invalid timeout %q: %w", spec.ID, spec.Timeout, err)
			}
		}
	}
	return nil
}

// BaseDir returns the directory of the environment file.
func (e *Environment) BaseDir() string {
	return e.baseDir
}

// BuildUnits resolves every template reference to its body and returns the
// units in declaration order.
func (e *Environment) BuildUnits(ctx context.Context, resolver *source.Resolver) ([]*unit.Unit, error) {
	units := make([]*unit.Unit, 0, len(e.Units))
	for _, spec := range e.Units {
		body, err := resolver.Resolve(ctx, spec.Template)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", spec.ID, err)
		}

		u := &unit.Unit{
			ID:        spec.ID,
			Kind:      unit.Kind(spec.Kind),
			DependsOn: spec.DependsOn,
			Template:  body,
			Params:    spec.Params,
			Outputs:   spec.Outputs,
			Inputs:    spec.Inputs,
		}
		if spec.Timeout != "" {
			u.Timeout, _ = time.ParseDuration(spec.Timeout)
		}
		units = append(units, u)
	}
	return units, nil
}
