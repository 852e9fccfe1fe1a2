package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/stackctl/pkg/deployer"
	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/engine/graph"
	"github.com/architect-io/stackctl/pkg/engine/module"
	"github.com/architect-io/stackctl/pkg/engine/planner"
	"github.com/architect-io/stackctl/pkg/errors"
)

// fakeDeployer records calls and returns configured outputs or errors.
type fakeDeployer struct {
	mu            sync.Mutex
	outputs       map[string]map[string]interface{}
	errs          map[string]error
	delay         time.Duration
	calls         []string
	params        map[string]map[string]interface{}
	concurrent    int
	maxConcurrent int
}

func (f *fakeDeployer) Name() string { return "fake" }

func (f *fakeDeployer) Deploy(ctx context.Context, req deployer.Request) (map[string]interface{}, error) {
	f.mu.Lock()
	f.concurrent++
	if f.concurrent > f.maxConcurrent {
		f.maxConcurrent = f.concurrent
	}
	f.calls = append(f.calls, req.Name)
	if f.params == nil {
		f.params = make(map[string]map[string]interface{})
	}
	f.params[req.Name] = req.Params
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.concurrent--
	f.mu.Unlock()

	if err := f.errs[req.Name]; err != nil {
		return nil, err
	}
	if out := f.outputs[req.Name]; out != nil {
		return out, nil
	}
	return map[string]interface{}{}, nil
}

type stepSpec struct {
	id        string
	dependsOn []string
	params    map[string]expr.Expr
	condition expr.Expr
	defaults  []module.ParameterSpec
}

func makePlan(specs []stepSpec) *planner.Plan {
	plan := &planner.Plan{}
	for _, s := range specs {
		node := &graph.Node{
			ID: s.id,
			Instance: &module.Instance{
				Name:   s.id,
				Module: "mod",
				Params: s.params,
			},
			Definition: &module.Definition{
				Name:       "mod",
				Source:     "./mod",
				Parameters: s.defaults,
			},
			DependsOn: s.dependsOn,
		}
		plan.Steps = append(plan.Steps, &planner.Step{Node: node, Condition: s.condition})
	}
	return plan
}

func TestExecute_OutputsFlowToDependents(t *testing.T) {
	d := &fakeDeployer{
		outputs: map[string]map[string]interface{}{
			"database": {"host": "db.internal", "port": 5432},
		},
	}
	plan := makePlan([]stepSpec{
		{id: "database"},
		{
			id:        "api",
			dependsOn: []string{"database"},
			params: map[string]expr.Expr{
				"db_url": expr.Concat{Parts: []expr.Expr{
					expr.Literal{Value: "postgres://"},
					expr.OutputRef{Instance: "database", Output: "host"},
				}},
			},
		},
	})

	result, err := NewExecutor(d, DefaultOptions()).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, StatusSucceeded, result.Instances["database"].Status)
	assert.Equal(t, StatusSucceeded, result.Instances["api"].Status)
	assert.Equal(t, []string{"database", "api"}, d.calls)
	assert.Equal(t, "postgres://db.internal", d.params["api"]["db_url"])

	host, ok := result.Store.Output("database", "host")
	require.True(t, ok)
	assert.Equal(t, "db.internal", host)
}

func TestExecute_ParallelismIsBounded(t *testing.T) {
	d := &fakeDeployer{delay: 20 * time.Millisecond}
	plan := makePlan([]stepSpec{
		{id: "a"}, {id: "b"}, {id: "c"}, {id: "d"}, {id: "e"},
	})

	opts := DefaultOptions()
	opts.Parallelism = 2
	result, err := NewExecutor(d, opts).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Len(t, d.calls, 5)
	assert.LessOrEqual(t, d.maxConcurrent, 2)
}

func TestExecute_FailureAbortsDependents(t *testing.T) {
	d := &fakeDeployer{
		errs: map[string]error{"database": assert.AnError},
	}
	plan := makePlan([]stepSpec{
		{id: "database"},
		{id: "api", dependsOn: []string{"database"}},
	})

	result, err := NewExecutor(d, DefaultOptions()).Execute(context.Background(), plan, nil)
	require.Error(t, err)

	assert.True(t, errors.Is(err, errors.ErrCodeExecution))
	assert.False(t, result.Success)
	assert.Equal(t, StatusFailed, result.Instances["database"].Status)
	assert.Equal(t, StatusAborted, result.Instances["api"].Status)
	assert.Equal(t, []string{"database"}, d.calls)
}

func TestExecute_InFlightFinishesAfterFailure(t *testing.T) {
	d := &fakeDeployer{
		errs:  map[string]error{"fast": assert.AnError},
		delay: 30 * time.Millisecond,
		outputs: map[string]map[string]interface{}{
			"slow": {"done": true},
		},
	}
	// Both start immediately; "fast" fails while "slow" is in flight.
	plan := makePlan([]stepSpec{
		{id: "slow"},
		{id: "fast"},
	})

	result, err := NewExecutor(d, DefaultOptions()).Execute(context.Background(), plan, nil)
	require.Error(t, err)

	assert.Equal(t, StatusFailed, result.Instances["fast"].Status)
	assert.Equal(t, StatusSucceeded, result.Instances["slow"].Status)
	_, published := result.Store.Output("slow", "done")
	assert.True(t, published)
}

func TestExecute_DeferredConditionSkips(t *testing.T) {
	d := &fakeDeployer{
		outputs: map[string]map[string]interface{}{
			"database": {"engine": "mysql"},
		},
	}
	plan := makePlan([]stepSpec{
		{id: "database"},
		{
			id:        "migrator",
			dependsOn: []string{"database"},
			condition: expr.Eq{
				Left:  expr.OutputRef{Instance: "database", Output: "engine"},
				Right: expr.Literal{Value: "postgres"},
			},
		},
	})

	result, err := NewExecutor(d, DefaultOptions()).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, StatusSkipped, result.Instances["migrator"].Status)
	assert.Equal(t, []string{"database"}, d.calls)
	assert.False(t, result.Store.Has("migrator"))
}

func TestExecute_DeferredConditionRunsWhenTrue(t *testing.T) {
	d := &fakeDeployer{
		outputs: map[string]map[string]interface{}{
			"database": {"engine": "postgres"},
		},
	}
	plan := makePlan([]stepSpec{
		{id: "database"},
		{
			id:        "migrator",
			dependsOn: []string{"database"},
			condition: expr.Eq{
				Left:  expr.OutputRef{Instance: "database", Output: "engine"},
				Right: expr.Literal{Value: "postgres"},
			},
		},
	})

	result, err := NewExecutor(d, DefaultOptions()).Execute(context.Background(), plan, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Instances["migrator"].Status)
	assert.Equal(t, []string{"database", "migrator"}, d.calls)
}

func TestExecute_DefaultParamsApplied(t *testing.T) {
	d := &fakeDeployer{}
	plan := makePlan([]stepSpec{
		{
			id: "cache",
			params: map[string]expr.Expr{
				"size": expr.Literal{Value: 10},
			},
			defaults: []module.ParameterSpec{
				{Name: "size", Type: "number"},
				{Name: "ttl", Type: "number", Default: 300},
			},
		},
	})

	_, err := NewExecutor(d, DefaultOptions()).Execute(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, d.params["cache"]["size"])
	assert.Equal(t, 300, d.params["cache"]["ttl"])
}

func TestExecute_ParamReferencingSkippedInstanceFails(t *testing.T) {
	d := &fakeDeployer{
		outputs: map[string]map[string]interface{}{
			"feature": {"enabled": false},
		},
	}
	plan := makePlan([]stepSpec{
		{id: "feature"},
		{
			id:        "addon",
			dependsOn: []string{"feature"},
			condition: expr.OutputRef{Instance: "feature", Output: "enabled"},
		},
		{
			id:        "consumer",
			dependsOn: []string{"addon"},
			params: map[string]expr.Expr{
				"endpoint": expr.OutputRef{Instance: "addon", Output: "endpoint"},
			},
		},
	})

	result, err := NewExecutor(d, DefaultOptions()).Execute(context.Background(), plan, nil)
	require.Error(t, err)

	assert.Equal(t, StatusSkipped, result.Instances["addon"].Status)
	assert.Equal(t, StatusFailed, result.Instances["consumer"].Status)
	assert.True(t, errors.Is(result.Instances["consumer"].Err, errors.ErrCodeExecution))
}

func TestExecute_EmptyPlan(t *testing.T) {
	result, err := NewExecutor(&fakeDeployer{}, DefaultOptions()).Execute(context.Background(), &planner.Plan{}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Instances)
}

func TestExecute_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &fakeDeployer{}
	plan := makePlan([]stepSpec{{id: "a"}})

	result, err := NewExecutor(d, DefaultOptions()).Execute(ctx, plan, nil)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, StatusAborted, result.Instances["a"].Status)
}
