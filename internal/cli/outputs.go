package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/architect-io/stackctl/pkg/state/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newOutputsCmd() *cobra.Command {
	var (
		runID         string
		output        string
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "outputs <stack>",
		Short: "Show the outputs of a deployment run",
		Long: `Show the stack-level outputs recorded by a deployment run.

By default the latest run is used; pass --run to select a specific one.

Examples:
  stackctl outputs webapp
  stackctl outputs webapp --run 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  stackctl outputs webapp -o json`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stackName := args[0]
			ctx := context.Background()

			mgr, err := createStateManagerWithConfig(backendType, backendConfig)
			if err != nil {
				return fmt.Errorf("failed to create record store: %w", err)
			}

			var record *types.RunRecord
			if runID != "" {
				record, err = mgr.GetRun(ctx, stackName, runID)
			} else {
				record, err = mgr.LatestRun(ctx, stackName)
			}
			if err != nil {
				return fmt.Errorf("failed to load run for stack %q: %w", stackName, err)
			}

			if record.Status != types.RunStatusSucceeded {
				fmt.Fprintf(os.Stderr, "Warning: run %s finished with status %s\n", record.ID, record.Status)
			}

			switch output {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(record.Outputs)
			case "yaml":
				return yaml.NewEncoder(os.Stdout).Encode(record.Outputs)
			case "text":
				if len(record.Outputs) == 0 {
					fmt.Println("No outputs recorded.")
					return nil
				}
				printOutputsText(record.Outputs)
				return nil
			default:
				return fmt.Errorf("unknown output format %q (expected text, json, or yaml)", output)
			}
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run ID (defaults to the latest run)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")
	cmd.Flags().StringVar(&backendType, "backend", "", "Record store backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}

func printOutputsText(outputs map[string]interface{}) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("  %s = %v\n", name, outputs[name])
	}
}
