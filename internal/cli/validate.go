package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strati-io/strati/internal/engine"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an environment without applying anything",
	Long: `Validate loads the environment file, resolves every template body,
checks the dependency graph for cycles and unknown units, and verifies that
every consumed value is actually produced by a declared dependency.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "environment.yaml", "Environment file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, units, err := loadEnvironment(ctx, validateFile)
	if err != nil {
		return err
	}

	sched, err := engine.Plan(units)
	if err != nil {
		return err
	}

	fmt.Printf("Environment %s is valid: %d unit(s)\n", env.Name, len(units))
	fmt.Printf("Apply order:    %v\n", sched.ApplyOrder())
	fmt.Printf("Teardown order: %v\n", sched.TeardownOrder())
	return nil
}
