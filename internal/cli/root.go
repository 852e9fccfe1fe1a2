// Package cli implements the stackctl CLI commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/architect-io/stackctl/internal/logging"

	// Import state backends to register them via init()
	_ "github.com/architect-io/stackctl/pkg/state/backend/azurerm"
	_ "github.com/architect-io/stackctl/pkg/state/backend/gcs"
	_ "github.com/architect-io/stackctl/pkg/state/backend/local"
	_ "github.com/architect-io/stackctl/pkg/state/backend/s3"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stackctl",
	Short: "Plan and deploy declarative module stacks",
	Long: `stackctl orchestrates the deployment of module stacks: it parses a
stack file, derives the dependency graph between module instances,
prunes conditionally inactive instances, and deploys the rest in
dependency order with bounded parallelism.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.NewLogger(os.Stderr, logging.ParseLevel(logLevel)))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stackctl/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "Record store backend type (local, s3, gcs, azurerm)")
	rootCmd.PersistentFlags().StringArray("backend-config", nil, "Backend configuration (key=value)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Bind to viper
	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.SetEnvPrefix("STACKCTL")
	viper.AutomaticEnv()

	// Add subcommands
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newOutputsCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.stackctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// Read config file if it exists
	_ = viper.ReadInConfig()
}
