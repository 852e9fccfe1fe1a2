// Package engine ties module definitions, instances, and deployers together
// into plan, execute, and output-selection operations.
package engine

import (
	"context"

	"github.com/architect-io/stackctl/pkg/deployer"
	"github.com/architect-io/stackctl/pkg/engine/executor"
	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/engine/graph"
	"github.com/architect-io/stackctl/pkg/engine/module"
	"github.com/architect-io/stackctl/pkg/engine/outputs"
	"github.com/architect-io/stackctl/pkg/engine/planner"
)

// Build validates definitions and instances, derives the dependency graph,
// and produces a deployment plan against the given parameter values.
func Build(definitions []*module.Definition, instances []*module.Instance, params map[string]interface{}) (*planner.Plan, error) {
	g, err := graph.NewBuilder(definitions).Build(instances)
	if err != nil {
		return nil, err
	}
	return planner.NewPlanner().Plan(g, params)
}

// Execute runs a plan with the given deployer.
func Execute(ctx context.Context, plan *planner.Plan, d deployer.Deployer, params map[string]interface{}, opts executor.Options) (*executor.Result, error) {
	return executor.NewExecutor(d, opts).Execute(ctx, plan, params)
}

// SelectOutputs evaluates stack-level output selections against the
// published instance outputs of a completed run.
func SelectOutputs(selections map[string]expr.Expr, params map[string]interface{}, store *outputs.Store) (map[string]interface{}, error) {
	return outputs.Select(selections, params, store)
}
