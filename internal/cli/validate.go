package cli

import (
	"fmt"

	"github.com/architect-io/stackctl/pkg/engine"
	"github.com/architect-io/stackctl/pkg/schema/stack"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var (
		paramFlags []string
		paramFile  string
	)

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a stack file",
		Long: `Parse a stack file and build its deployment plan without deploying.

Validation reports every problem it can find in one pass: parse errors,
references to unknown modules or outputs, parameter contract violations,
dependency cycles, and conditions that depend on inactive instances.

Examples:
  stackctl validate
  stackctl validate ./examples/webapp --param environment=prod`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}

			st, err := loadStack(arg)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			overrides, err := parseParams(paramFlags, paramFile)
			if err != nil {
				return err
			}

			params, err := stack.ResolveParams(st.Params, overrides)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			if _, err := engine.Build(st.Definitions, st.Instances, params); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			fmt.Printf("Stack %s is valid: %d modules, %d deployments.\n",
				st.SourcePath, len(st.Definitions), len(st.Instances))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Set a stack parameter (key=value)")
	cmd.Flags().StringVar(&paramFile, "param-file", "", "Load stack parameters from file")

	return cmd
}
