package cli

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/architect-io/stackctl/pkg/deployer"
	"github.com/architect-io/stackctl/pkg/engine"
	"github.com/architect-io/stackctl/pkg/engine/executor"
	"github.com/architect-io/stackctl/pkg/engine/planner"
	"github.com/architect-io/stackctl/pkg/resolver"
	"github.com/architect-io/stackctl/pkg/schema/stack"
	"github.com/architect-io/stackctl/pkg/state"
	"github.com/architect-io/stackctl/pkg/state/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	var (
		paramFlags    []string
		paramFile     string
		stackOverride string
		deployerName  string
		parallelism   int
		dryRun        bool
		autoApprove   bool
		backendType   string
		backendConfig []string
	)

	cmd := &cobra.Command{
		Use:   "deploy [path]",
		Short: "Deploy a stack",
		Long: `Deploy every active module instance of a stack in dependency order.

Instances with no dependency relationship deploy concurrently, bounded by
--parallelism. On the first failure no new deployments start; in-flight
deployments run to completion and their dependents are aborted.

Each run is recorded in the record store, so stackctl runs and
stackctl outputs can inspect it afterward.

Examples:
  stackctl deploy
  stackctl deploy ./examples/webapp --param environment=prod
  stackctl deploy --dry-run
  stackctl deploy --deployer command --parallelism 4`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			ctx := context.Background()

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

			name := stackOverride
			if name == "" {
				name = stackName(st.SourcePath)
			}

			// Dry runs use the static deployer so no provisioner is invoked.
			effectiveDeployer := deployerName
			if dryRun {
				effectiveDeployer = "static"
			}

			registry := deployer.NewDefaultRegistry()
			d, err := registry.Get(effectiveDeployer)
			if err != nil {
				return fmt.Errorf("unknown deployer %q (available: %s)",
					effectiveDeployer, strings.Join(registry.Names(), ", "))
			}

			// Resolve template sources to local paths before anything runs.
			if !dryRun {
				if err := resolveSources(ctx, st); err != nil {
					return err
				}
			}

			progress := NewProgressTable(os.Stdout)
			for _, step := range plan.Steps {
				progress.AddInstance(step.Node.ID, step.Node.Definition.Name)
			}
			progress.PrintInitial()

			if plan.IsEmpty() {
				fmt.Println("Nothing to deploy.")
				return nil
			}

			// Confirm unless --auto-approve or non-interactive
			if !autoApprove && !dryRun && isInteractive() {
				fmt.Print("Proceed with deployment? [Y/n]: ")
				var response string
				_, _ = fmt.Scanln(&response)
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "" && response != "y" && response != "yes" {
					fmt.Println("Deployment cancelled.")
					return nil
				}
			}

			// Dry runs walk the plan and stop: no lock, no run record.
			if dryRun {
				result, execErr := engine.Execute(ctx, plan, d, params, executor.Options{
					Parallelism: parallelism,
					OnUpdate: func(instance string, status executor.Status) {
						progress.Update(instance, status, nil)
					},
				})
				if result != nil {
					for id, ir := range result.Instances {
						if ir.Err != nil {
							progress.RecordError(id, ir.Err)
						}
					}
				}
				progress.PrintFinalSummary()
				if execErr != nil {
					return fmt.Errorf("dry run failed: %w", execErr)
				}
				return nil
			}

			mgr, err := createStateManagerWithConfig(backendType, backendConfig)
			if err != nil {
				return fmt.Errorf("failed to create record store: %w", err)
			}

			lock, err := mgr.Lock(ctx, state.LockScope{
				Stack:     name,
				Operation: "deploy",
				Who:       lockHolder(),
			})
			if err != nil {
				return fmt.Errorf("stack %q is locked: %w", name, err)
			}
			defer func() { _ = lock.Unlock(ctx) }()

			record := &types.RunRecord{
				ID:        uuid.New().String(),
				Stack:     name,
				Source:    st.SourcePath,
				StartedAt: time.Now(),
				Status:    types.RunStatusRunning,
				Params:    params,
			}

			result, execErr := engine.Execute(ctx, plan, d, params, executor.Options{
				Parallelism: parallelism,
				OnUpdate: func(instance string, status executor.Status) {
					progress.Update(instance, status, nil)
				},
			})

			recordResult(record, plan, result, execErr)

			var selectErr error
			if result != nil && result.Success {
				outputs, err := engine.SelectOutputs(st.Outputs, params, result.Store)
				if err != nil {
					selectErr = err
					record.Status = types.RunStatusFailed
					record.StatusReason = err.Error()
				} else {
					record.Outputs = outputs
				}
			}

			if err := mgr.SaveRun(ctx, record); err != nil {
				return fmt.Errorf("failed to save run record: %w", err)
			}

			if result != nil {
				for id, ir := range result.Instances {
					if ir.Err != nil {
						progress.RecordError(id, ir.Err)
					}
				}
			}
			progress.PrintFinalSummary()

			if execErr != nil {
				return fmt.Errorf("deployment failed: %w", execErr)
			}
			if selectErr != nil {
				return fmt.Errorf("deployment succeeded but output selection failed: %w", selectErr)
			}

			if len(record.Outputs) > 0 {
				fmt.Println()
				fmt.Println("Outputs:")
				printOutputsText(record.Outputs)
			}

			fmt.Println()
			fmt.Printf("Run %s recorded for stack %q.\n", record.ID, name)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Set a stack parameter (key=value)")
	cmd.Flags().StringVar(&paramFile, "param-file", "", "Load stack parameters from file")
	cmd.Flags().StringVar(&stackOverride, "stack", "", "Stack name in the record store (defaults to the stack directory name)")
	cmd.Flags().StringVar(&deployerName, "deployer", "command", "Deployer to use (command, static)")
	cmd.Flags().IntVar(&parallelism, "parallelism", defaultParallelism, "Maximum concurrent deployments")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Walk the plan with the static deployer, invoking no provisioner")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip confirmation prompt")
	cmd.Flags().StringVar(&backendType, "backend", "", "Record store backend type")
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "Backend configuration (key=value)")

	return cmd
}

// resolveSources resolves every definition's template source to a local
// path, in place, so the deployer receives paths it can use directly.
func resolveSources(ctx context.Context, st *stack.Stack) error {
	sources := make([]string, 0, len(st.Definitions))
	for _, def := range st.Definitions {
		sources = append(sources, def.Source)
	}

	res := resolver.NewResolver(resolver.Options{
		BaseDir: filepath.Dir(st.SourcePath),
	})
	resolved, err := res.ResolveAll(ctx, sources)
	if err != nil {
		return err
	}

	for _, def := range st.Definitions {
		def.Source = resolved[def.Source].Path
	}
	return nil
}

// recordResult maps execution results onto the run record.
func recordResult(record *types.RunRecord, plan *planner.Plan, result *executor.Result, execErr error) {
	record.FinishedAt = time.Now()
	record.Instances = make(map[string]*types.InstanceRecord)

	if result != nil {
		for id, ir := range result.Instances {
			rec := &types.InstanceRecord{
				Name:     id,
				Status:   types.InstanceStatus(ir.Status),
				Duration: ir.Duration,
				Outputs:  ir.Outputs,
			}
			if step := plan.Step(id); step != nil {
				rec.Module = step.Node.Definition.Name
			}
			if ir.Err != nil {
				rec.Error = ir.Err.Error()
			}
			record.Instances[id] = rec
		}
	}

	if execErr != nil || result == nil || !result.Success {
		record.Status = types.RunStatusFailed
		if execErr != nil {
			record.StatusReason = execErr.Error()
		}
	} else {
		record.Status = types.RunStatusSucceeded
	}
}

// lockHolder identifies this process in advisory lock metadata.
func lockHolder() string {
	who := "stackctl"
	if u, err := user.Current(); err == nil && u.Username != "" {
		who = u.Username
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		who += "@" + host
	}
	return who
}
