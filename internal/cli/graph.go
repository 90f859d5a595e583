package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strati-io/strati/internal/config"
	"github.com/strati-io/strati/internal/engine"
	"github.com/strati-io/strati/internal/unit"
)

var graphFile string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Output the unit dependency graph in DOT format",
	Long: `Generates a visual representation of the unit dependency graph in
Graphviz DOT format. Pipe the output to 'dot' to generate an image:

  strati graph | dot -Tpng > graph.png`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVarP(&graphFile, "file", "f", "environment.yaml", "Environment file")
}

func runGraph(cmd *cobra.Command, args []string) error {
	env, err := config.Load(graphFile)
	if err != nil {
		return err
	}

	// Template bodies are irrelevant to the graph; build bare units so
	// nothing is fetched from S3.
	units := make([]*unit.Unit, 0, len(env.Units))
	for _, spec := range env.Units {
		units = append(units, &unit.Unit{
			ID:        spec.ID,
			Kind:      unit.Kind(spec.Kind),
			DependsOn: spec.DependsOn,
			Outputs:   spec.Outputs,
			Inputs:    spec.Inputs,
		})
	}

	sched, err := engine.Plan(units)
	if err != nil {
		return err
	}

	byID := make(map[string]*unit.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	// Nodes come out in apply order so the rendering is stable.
	fmt.Printf("digraph %q {\n", env.Name)
	fmt.Println("  rankdir = \"TB\";")
	for _, id := range sched.ApplyOrder() {
		fmt.Printf("  %q;\n", id)
		for _, dep := range byID[id].DependsOn {
			fmt.Printf("  %q -> %q;\n", id, dep)
		}
	}
	fmt.Println("}")
	return nil
}
