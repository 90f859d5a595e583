package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strati-io/strati/internal/engine"
)

var (
	teardownFile        string
	teardownDryRun      bool
	teardownAutoApprove bool
	teardownInterval    time.Duration
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete every unit of an environment in reverse dependency order",
	Long: `Teardown deletes the environment's units in the exact reverse of the
provisioning order, so no dependency is removed before its dependents.
Units that are already absent count as deleted. Individual failures are
recorded and the remaining units still get a deletion attempt.`,
	RunE: runTeardown,
}

func init() {
	teardownCmd.Flags().StringVarP(&teardownFile, "file", "f", "environment.yaml", "Environment file")
	teardownCmd.Flags().BoolVar(&teardownDryRun, "dry-run", false, "Run against in-memory collaborators instead of AWS and the cluster")
	teardownCmd.Flags().BoolVar(&teardownAutoApprove, "auto-approve", false, "Skip interactive approval before deleting")
	teardownCmd.Flags().DurationVar(&teardownInterval, "poll-interval", 0, "Readiness poll interval (default 5s)")
}

func runTeardown(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, units, err := loadEnvironment(ctx, teardownFile)
	if err != nil {
		return err
	}

	sched, err := engine.Plan(units)
	if err != nil {
		return err
	}

	fmt.Printf("Environment %s: deleting %d unit(s) in order: %v\n", env.Name, len(units), sched.TeardownOrder())

	if !teardownAutoApprove && !teardownDryRun {
		fmt.Print("\nDo you really want to delete these units? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Teardown cancelled.")
			return nil
		}
	}

	collabs, err := buildCollaborators(ctx, env, units, teardownDryRun)
	if err != nil {
		return err
	}

	eng := engine.New(collabs, engineOptions(teardownInterval))
	report, err := eng.Teardown(ctx, units)
	printReport(report)
	if err != nil {
		return fmt.Errorf("teardown finished with failures: %w", err)
	}

	fmt.Printf("\nDeleted %d unit(s).\n", len(report.Units))
	return nil
}
