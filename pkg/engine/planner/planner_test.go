package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/engine/graph"
	"github.com/architect-io/stackctl/pkg/engine/module"
	"github.com/architect-io/stackctl/pkg/errors"
)

type testNode struct {
	id        string
	condition expr.Expr
	dependsOn []string
}

func buildGraph(t *testing.T, nodes []testNode) *graph.Graph {
	t.Helper()

	def := &module.Definition{Name: "noop", Source: "./noop"}
	g := graph.NewGraph()
	for _, n := range nodes {
		err := g.AddNode(&graph.Node{
			ID: n.id,
			Instance: &module.Instance{
				Name:      n.id,
				Module:    def.Name,
				Condition: n.condition,
			},
			Definition: def,
		})
		require.NoError(t, err)
	}
	for _, n := range nodes {
		for _, dep := range n.dependsOn {
			require.NoError(t, g.AddEdge(n.id, dep))
		}
	}
	return g
}

func TestPlan_LinearChain(t *testing.T) {
	g := buildGraph(t, []testNode{
		{id: "database"},
		{id: "api", dependsOn: []string{"database"}},
	})

	plan, err := NewPlanner().Plan(g, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"database", "api"}, plan.IDs())
	assert.Empty(t, plan.Skipped)
}

func TestPlan_DeclarationOrderTieBreak(t *testing.T) {
	// No edges between the three, so ordering falls back to declaration
	// order and must be reproducible.
	g := buildGraph(t, []testNode{
		{id: "charlie"},
		{id: "alpha"},
		{id: "bravo"},
	})

	for i := 0; i < 10; i++ {
		plan, err := NewPlanner().Plan(g, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"charlie", "alpha", "bravo"}, plan.IDs())
	}
}

func TestPlan_DiamondRespectsEdgesThenDeclaration(t *testing.T) {
	g := buildGraph(t, []testNode{
		{id: "vpc"},
		{id: "cache", dependsOn: []string{"vpc"}},
		{id: "database", dependsOn: []string{"vpc"}},
		{id: "api", dependsOn: []string{"cache", "database"}},
	})

	plan, err := NewPlanner().Plan(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"vpc", "cache", "database", "api"}, plan.IDs())
}

func TestPlan_StaticallyInactiveInstanceIsSkipped(t *testing.T) {
	g := buildGraph(t, []testNode{
		{id: "database"},
		{id: "replica", condition: expr.ParamRef{Name: "ha"}},
	})

	plan, err := NewPlanner().Plan(g, map[string]interface{}{"ha": false})
	require.NoError(t, err)

	assert.Equal(t, []string{"database"}, plan.IDs())
	assert.Equal(t, []string{"replica"}, plan.Skipped)
}

func TestPlan_ActiveConsumerOfInactiveProducerFails(t *testing.T) {
	g := buildGraph(t, []testNode{
		{id: "a"},
		{id: "b", condition: expr.Literal{Value: false}},
		{id: "c", dependsOn: []string{"b"}},
	})

	_, err := NewPlanner().Plan(g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInactiveDependency))
	assert.Contains(t, err.Error(), `"b"`)
	assert.Contains(t, err.Error(), `"c"`)
}

func TestPlan_CycleReportsFullPath(t *testing.T) {
	g := buildGraph(t, []testNode{
		{id: "a", dependsOn: []string{"b"}},
		{id: "b", dependsOn: []string{"a"}},
	})

	_, err := NewPlanner().Plan(g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCyclicDependency))
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestPlan_CycleDetectedEvenWhenInactive(t *testing.T) {
	// A cycle is a configuration error regardless of conditions.
	g := buildGraph(t, []testNode{
		{id: "a", condition: expr.Literal{Value: false}, dependsOn: []string{"b"}},
		{id: "b", condition: expr.Literal{Value: false}, dependsOn: []string{"a"}},
	})

	_, err := NewPlanner().Plan(g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCyclicDependency))
}

func TestPlan_OutputConditionIsDeferred(t *testing.T) {
	cond := expr.Eq{
		Left:  expr.OutputRef{Instance: "database", Output: "engine"},
		Right: expr.Literal{Value: "postgres"},
	}
	g := buildGraph(t, []testNode{
		{id: "database"},
		{id: "migrator", condition: cond, dependsOn: []string{"database"}},
	})

	plan, err := NewPlanner().Plan(g, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"database", "migrator"}, plan.IDs())

	assert.Nil(t, plan.Step("database").Condition)
	assert.Equal(t, cond, plan.Step("migrator").Condition)
}

func TestPlan_StaticallyTrueProducerAllowsDeferredCondition(t *testing.T) {
	// A producer whose condition is already known true is as good as an
	// unconditional one.
	g := buildGraph(t, []testNode{
		{id: "database", condition: expr.ParamRef{Name: "db"}},
		{
			id:        "migrator",
			condition: expr.OutputRef{Instance: "database", Output: "ready"},
			dependsOn: []string{"database"},
		},
	})

	plan, err := NewPlanner().Plan(g, map[string]interface{}{"db": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"database", "migrator"}, plan.IDs())
	assert.NotNil(t, plan.Step("migrator").Condition)
}

func TestPlan_DeferredConditionOnDeferredProducerFails(t *testing.T) {
	g := buildGraph(t, []testNode{
		{id: "base"},
		{
			id:        "database",
			condition: expr.OutputRef{Instance: "base", Output: "enabled"},
			dependsOn: []string{"base"},
		},
		{
			id:        "migrator",
			condition: expr.OutputRef{Instance: "database", Output: "ready"},
			dependsOn: []string{"database"},
		},
	})

	// The migrator's condition depends on outputs of an instance that may
	// itself be skipped at runtime.
	_, err := NewPlanner().Plan(g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInactiveDependency))
	assert.Contains(t, err.Error(), `"migrator"`)
}

func TestPlan_ConditionEvaluationError(t *testing.T) {
	g := buildGraph(t, []testNode{
		{id: "a", condition: expr.ParamRef{Name: "missing"}},
	})

	_, err := NewPlanner().Plan(g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeExpression))
}

func TestPlan_EmptyGraph(t *testing.T) {
	plan, err := NewPlanner().Plan(graph.NewGraph(), nil)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}
