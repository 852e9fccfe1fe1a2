package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/architect-io/stackctl/pkg/engine"
	"github.com/architect-io/stackctl/pkg/engine/planner"
	"github.com/architect-io/stackctl/pkg/schema/stack"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// planStep is the serializable form of one planned deployment.
type planStep struct {
	Name     string `json:"name" yaml:"name"`
	Module   string `json:"module" yaml:"module"`
	Source   string `json:"source" yaml:"source"`
	Deferred bool   `json:"deferred,omitempty" yaml:"deferred,omitempty"`
}

// planDocument is the serializable form of a whole plan.
type planDocument struct {
	Steps   []planStep `json:"steps" yaml:"steps"`
	Skipped []string   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func newPlanCmd() *cobra.Command {
	var (
		paramFlags []string
		paramFile  string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "plan [path]",
		Short: "Show the deployment plan for a stack",
		Long: `Build the deployment plan for a stack without deploying anything.

The plan lists every active module instance in deployment order, marks
instances whose conditions must wait for upstream outputs, and lists the
instances pruned by statically false conditions.

Examples:
  stackctl plan
  stackctl plan ./examples/webapp
  stackctl plan --param environment=prod -o json`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}

			st, err := loadStack(arg)
			if err != nil {
				return err
			}

			overrides, err := parseParams(paramFlags, paramFile)
			if err != nil {
				return err
			}

			params, err := stack.ResolveParams(st.Params, overrides)
			if err != nil {
				return err
			}

			plan, err := engine.Build(st.Definitions, st.Instances, params)
			if err != nil {
				return err
			}

			return renderPlan(plan, output)
		},
	}

	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Set a stack parameter (key=value)")
	cmd.Flags().StringVar(&paramFile, "param-file", "", "Load stack parameters from file")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")

	return cmd
}

func renderPlan(plan *planner.Plan, output string) error {
	doc := planDocument{Skipped: plan.Skipped}
	for _, step := range plan.Steps {
		doc.Steps = append(doc.Steps, planStep{
			Name:     step.Node.ID,
			Module:   step.Node.Definition.Name,
			Source:   step.Node.Definition.Source,
			Deferred: step.Condition != nil,
		})
	}

	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(doc)
	case "text":
		printPlanText(doc)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (expected text, json, or yaml)", output)
	}
}

func printPlanText(doc planDocument) {
	if len(doc.Steps) == 0 {
		fmt.Println("Nothing to deploy.")
	} else {
		fmt.Println("Deployment plan:")
		for i, step := range doc.Steps {
			marker := ""
			if step.Deferred {
				marker = "  (condition checked at deploy time)"
			}
			fmt.Printf("  %2d. %s (module %s)%s\n", i+1, step.Name, step.Module, marker)
		}
	}

	if len(doc.Skipped) > 0 {
		fmt.Println()
		fmt.Println("Skipped (condition false):")
		for _, name := range doc.Skipped {
			fmt.Printf("  - %s\n", name)
		}
	}
}
