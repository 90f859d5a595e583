package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strati-io/strati/internal/engine"
)

var (
	provisionFile        string
	provisionDryRun      bool
	provisionAutoApprove bool
	provisionInterval    time.Duration
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Apply every unit of an environment in dependency order",
	Long: `Provision applies the environment's units in dependency order. Each unit
is rendered with the outputs of its dependencies, submitted, and polled
until it is observably ready before the next unit starts.

A failed unit aborts the run and leaves previously applied units in place;
nothing is rolled back automatically.`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVarP(&provisionFile, "file", "f", "environment.yaml", "Environment file")
	provisionCmd.Flags().BoolVar(&provisionDryRun, "dry-run", false, "Run against in-memory collaborators instead of AWS and the cluster")
	provisionCmd.Flags().BoolVar(&provisionAutoApprove, "auto-approve", false, "Skip interactive approval before applying")
	provisionCmd.Flags().DurationVar(&provisionInterval, "poll-interval", 0, "Readiness poll interval (default 5s)")
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, units, err := loadEnvironment(ctx, provisionFile)
	if err != nil {
		return err
	}

	sched, err := engine.Plan(units)
	if err != nil {
		return err
	}

	fmt.Printf("Environment %s: %d unit(s) in order: %v\n", env.Name, len(units), sched.ApplyOrder())

	if !provisionAutoApprove && !provisionDryRun {
		fmt.Print("\nDo you want to provision these units? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Provision cancelled.")
			return nil
		}
	}

	collabs, err := buildCollaborators(ctx, env, units, provisionDryRun)
	if err != nil {
		return err
	}

	eng := engine.New(collabs, engineOptions(provisionInterval))
	report, err := eng.Provision(ctx, units)
	printReport(report)
	if err != nil {
		return fmt.Errorf("provision failed: %w", err)
	}

	fmt.Printf("\nProvisioned %d unit(s).\n", len(report.Units))
	return nil
}
