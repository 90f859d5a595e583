package cli

import (
	"github.com/spf13/cobra"

	"github.com/strati-io/strati/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "strati",
	Short: "Layered cloud environment provisioner",
	Long: `Strati provisions layered cloud environments: CloudFormation stacks and
Kubernetes manifests applied in strict dependency order, with outputs of one
unit flowing into the templates of the next, and readiness gating between
every step.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(teardownCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)
}
