package cli

import (
	"context"
	"fmt"
	"time"

	"k8s.io/client-go/rest"

	"github.com/strati-io/strati/internal/config"
	"github.com/strati-io/strati/internal/engine"
	"github.com/strati-io/strati/internal/source"
	"github.com/strati-io/strati/internal/unit"
	"github.com/strati-io/strati/providers/cloudformation"
	"github.com/strati-io/strati/providers/eks"
	"github.com/strati-io/strati/providers/kube"
	"github.com/strati-io/strati/providers/static"
)

// loadEnvironment reads the environment file and resolves every unit's
// template body.
func loadEnvironment(ctx context.Context, path string) (*config.Environment, []*unit.Unit, error) {
	env, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	resolver := source.NewResolver(env.BaseDir(), env.Region, env.Profile)
	units, err := env.BuildUnits(ctx, resolver)
	if err != nil {
		return nil, nil, err
	}
	return env, units, nil
}

// buildCollaborators wires the per-kind collaborators. With dryRun set,
// everything runs against the in-memory static provider.
func buildCollaborators(ctx context.Context, env *config.Environment, units []*unit.Unit, dryRun bool) (map[unit.Kind]engine.Collaborators, error) {
	if dryRun {
		p := static.New()
		// Declared outputs need placeholder values so dependents render.
		for _, u := range units {
			if u.Kind != unit.KindStack {
				continue
			}
			outs := make(map[string]string, len(u.Outputs))
			for _, name := range u.Outputs {
				outs[name] = fmt.Sprintf("dry-run-%s-%s", u.ID, name)
			}
			p.SetOutputs(u.ID, outs)
		}
		return map[unit.Kind]engine.Collaborators{
			unit.KindStack:    p.Collaborators(),
			unit.KindManifest: p.Collaborators(),
		}, nil
	}

	cfn, err := cloudformation.New(ctx, env.Region, env.Profile, env.Name)
	if err != nil {
		return nil, err
	}
	collabs := map[unit.Kind]engine.Collaborators{
		unit.KindStack: {Applier: cfn, Deleter: cfn, Status: cfn},
	}

	manifests := make(map[string]string)
	for _, u := range units {
		if u.Kind == unit.KindManifest {
			manifests[u.ID] = u.Template
		}
	}
	if len(manifests) == 0 {
		return collabs, nil
	}

	if env.Cluster.Name == "" {
		return nil, fmt.Errorf("environment %q declares manifest units but no cluster name", env.Name)
	}
	eksClient, err := eks.New(ctx, env.Region, env.Profile)
	if err != nil {
		return nil, err
	}
	kubeProvider := kube.New(func(ctx context.Context) (*rest.Config, error) {
		return eksClient.RESTConfig(ctx, env.Cluster.Name)
	}, manifests)
	collabs[unit.KindManifest] = engine.Collaborators{Applier: kubeProvider, Deleter: kubeProvider, Status: kubeProvider}

	return collabs, nil
}

func engineOptions(pollInterval time.Duration) engine.Options {
	opts := engine.DefaultOptions()
	if pollInterval > 0 {
		opts.Interval = pollInterval
	}
	return opts
}

func printReport(report *engine.RunReport) {
	if report == nil || len(report.Units) == 0 {
		return
	}
	fmt.Println()
	fmt.Print(report.String())
}
