package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	var (
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "runs [stack]",
		Short: "List deployment runs",
		Long: `List the recorded deployment runs of a stack, newest first.

With no argument, lists the stacks present in the record store.

Examples:
  stackctl runs
  stackctl runs webapp`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, err := createStateManagerWithConfig(backendType, backendConfig)
			if err != nil {
				return fmt.Errorf("failed to create record store: %w", err)
			}

			if len(args) == 0 {
				stacks, err := mgr.ListStacks(ctx)
				if err != nil {
					return fmt.Errorf("failed to list stacks: %w", err)
				}
				if len(stacks) == 0 {
					fmt.Println("No stacks recorded.")
					return nil
				}
				fmt.Println("Stacks:")
				for _, name := range stacks {
					fmt.Printf("  %s\n", name)
				}
				return nil
			}

			stackName := args[0]
			runs, err := mgr.ListRuns(ctx, stackName)
			if err != nil {
				return fmt.Errorf("failed to list runs for stack %q: %w", stackName, err)
			}
			if len(runs) == 0 {
				fmt.Printf("No runs recorded for stack %q.\n", stackName)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tDURATION\tINSTANCES")
			for _, run := range runs {
				duration := ""
				if !run.FinishedAt.IsZero() {
					duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					run.ID,
					run.Status,
					run.StartedAt.Format(time.RFC3339),
					duration,
					len(run.Instances),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&backendType, "backend", "", "Record store backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}
