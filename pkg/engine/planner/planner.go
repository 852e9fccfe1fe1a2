// Package planner produces deployment plans from dependency graphs.
package planner

import (
	"fmt"

	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/engine/graph"
	"github.com/architect-io/stackctl/pkg/errors"
)

// Activity classifies whether an instance deploys in this run.
type Activity string

const (
	// ActivityActive means the instance deploys.
	ActivityActive Activity = "active"

	// ActivityInactive means the condition is statically false; the
	// instance is pruned before planning.
	ActivityInactive Activity = "inactive"

	// ActivityDeferred means the condition references outputs of
	// unconditionally-active producers and is evaluated during execution,
	// once those producers have published.
	ActivityDeferred Activity = "deferred"
)

// Step is one planned instance. Steps appear in a valid linearization of the
// dependency partial order; every dependency edge points backward.
type Step struct {
	Node *graph.Node

	// Condition is set only for deferred-condition instances. The
	// coordinator evaluates it just before the instance would start.
	Condition expr.Expr
}

// Plan is a validated, ordered sequence of active instances.
type Plan struct {
	// Steps in execution order (producers before consumers).
	Steps []*Step

	// Skipped lists statically inactive instances, in declaration order.
	Skipped []string

	index map[string]*Step
}

// IsEmpty returns true when nothing would deploy.
func (p *Plan) IsEmpty() bool {
	return len(p.Steps) == 0
}

// Step returns the planned step for an instance ID, or nil.
func (p *Plan) Step(id string) *Step {
	return p.index[id]
}

// IDs returns the planned instance IDs in execution order.
func (p *Plan) IDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.Node.ID
	}
	return ids
}

// Planner generates deployment plans.
type Planner struct{}

// NewPlanner creates a new planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan validates a graph against the bound outer parameters and produces a
// deployment plan. Validation order:
//
//  1. cycle detection over the full edge set (a cycle is always a
//     configuration error, even among inactive instances),
//  2. condition evaluation and active/inactive/deferred classification,
//  3. pruning of inactive instances, failing when an active consumer
//     depends on an inactive producer,
//  4. topological sort of what remains, tie-broken by declaration order.
//
// All inactive-dependency failures are aggregated before reporting.
func (p *Planner) Plan(g *graph.Graph, params map[string]interface{}) (*Plan, error) {
	if cycle := findCycle(g); cycle != nil {
		return nil, errors.CyclicDependencyError(cycle)
	}

	activity, deferred, err := classify(g, params)
	if err != nil {
		return nil, err
	}

	var inactiveDeps []*errors.Error
	for _, id := range g.Order() {
		if activity[id] == ActivityInactive {
			continue
		}
		for _, depID := range g.GetNode(id).DependsOn {
			if activity[depID] == ActivityInactive {
				inactiveDeps = append(inactiveDeps, errors.InactiveDependencyError(id, depID))
			}
		}
	}
	if len(inactiveDeps) > 0 {
		return nil, aggregateInactive(inactiveDeps)
	}

	order := topoSort(g, activity)

	plan := &Plan{index: make(map[string]*Step)}
	for _, id := range g.Order() {
		if activity[id] == ActivityInactive {
			plan.Skipped = append(plan.Skipped, id)
		}
	}
	for _, id := range order {
		step := &Step{Node: g.GetNode(id)}
		if activity[id] == ActivityDeferred {
			step.Condition = deferred[id]
		}
		plan.Steps = append(plan.Steps, step)
		plan.index[id] = step
	}

	return plan, nil
}

// classify computes each instance's activity. Conditions without output
// references are evaluated now against the outer parameters. A condition
// that references outputs is deferred, which is only legal when every
// referenced producer is itself unconditionally active; anything else is an
// inactive-dependency configuration error.
func classify(g *graph.Graph, params map[string]interface{}) (map[string]Activity, map[string]expr.Expr, error) {
	activity := make(map[string]Activity, g.Len())
	deferred := make(map[string]expr.Expr)
	scope := expr.Scope{Params: params}

	var problems []*errors.Error
	var visit func(id string) (Activity, error)
	visit = func(id string) (Activity, error) {
		if a, done := activity[id]; done {
			return a, nil
		}

		node := g.GetNode(id)
		cond := node.Instance.Condition

		if cond == nil {
			activity[id] = ActivityActive
			return ActivityActive, nil
		}

		refs := expr.Refs(cond)
		if len(refs) == 0 {
			ok, err := expr.EvalBool(cond, scope)
			if err != nil {
				return "", errors.Wrap(errors.ErrCodeExpression,
					fmt.Sprintf("failed to evaluate condition of instance %q", id), err)
			}
			if ok {
				activity[id] = ActivityActive
				return ActivityActive, nil
			}
			activity[id] = ActivityInactive
			return ActivityInactive, nil
		}

		// The graph is acyclic here, so recursion terminates.
		legal := true
		for _, ref := range refs {
			pa, err := visit(ref.Instance)
			if err != nil {
				return "", err
			}
			if pa != ActivityActive {
				// Inactive producers never publish; deferred producers may
				// be skipped at runtime. Either way the condition could
				// block on an output that never materializes.
				problems = append(problems, errors.InactiveDependencyError(id, ref.Instance))
				legal = false
			}
		}

		if !legal {
			// Classification continues so every problem is collected; the
			// aggregated error below prevents this value from being used.
			activity[id] = ActivityInactive
			return ActivityInactive, nil
		}

		activity[id] = ActivityDeferred
		deferred[id] = cond
		return ActivityDeferred, nil
	}

	for _, id := range g.Order() {
		if _, err := visit(id); err != nil {
			return nil, nil, err
		}
	}

	if len(problems) > 0 {
		return nil, nil, aggregateInactive(problems)
	}

	return activity, deferred, nil
}

// findCycle runs a three-color depth-first traversal and, on the first
// back-edge, returns the full cycle path with the entry node repeated at the
// end (e.g. [a b a]). Returns nil for acyclic graphs.
func findCycle(g *graph.Graph) []string {
	const (
		white = 0 // unvisited
		grey  = 1 // in progress
		black = 2 // done
	)

	color := make(map[string]int, g.Len())
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)

		for _, depID := range g.GetNode(id).DependsOn {
			switch color[depID] {
			case grey:
				// Back-edge: the cycle is the stack suffix starting at the
				// in-progress node, closed by repeating it.
				for i, onStack := range stack {
					if onStack == depID {
						cycle = append(append([]string{}, stack[i:]...), depID)
						return true
					}
				}
			case white:
				if visit(depID) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.Order() {
		if color[id] == white && visit(id) {
			return cycle
		}
	}

	return nil
}

// topoSort linearizes the non-inactive subgraph with Kahn's algorithm,
// always emitting the ready node with the lowest declaration index so plans
// are deterministic and reproducible.
func topoSort(g *graph.Graph, activity map[string]Activity) []string {
	inDegree := make(map[string]int)
	for _, id := range g.Order() {
		if activity[id] == ActivityInactive {
			continue
		}
		degree := 0
		for _, depID := range g.GetNode(id).DependsOn {
			if activity[depID] != ActivityInactive {
				degree++
			}
		}
		inDegree[id] = degree
	}

	var ready []string
	for _, id := range g.Order() {
		if _, retained := inDegree[id]; retained && inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var order []string
	for len(ready) > 0 {
		// Pick the ready node declared earliest.
		best := 0
		for i := 1; i < len(ready); i++ {
			if g.GetNode(ready[i]).Decl < g.GetNode(ready[best]).Decl {
				best = i
			}
		}
		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, id)

		for _, depID := range g.GetNode(id).DependedOnBy {
			if _, retained := inDegree[depID]; !retained {
				continue
			}
			inDegree[depID]--
			if inDegree[depID] == 0 {
				ready = append(ready, depID)
			}
		}
	}

	return order
}

func aggregateInactive(problems []*errors.Error) error {
	if len(problems) == 1 {
		return problems[0]
	}

	agg := errors.New(errors.ErrCodeInactiveDependency,
		fmt.Sprintf("%d inactive dependency problem(s)", len(problems)))
	for _, p := range problems {
		agg.Message += "\n  - " + p.Message
	}
	return agg
}
