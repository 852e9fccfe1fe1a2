package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/stackctl/pkg/deployer"
	"github.com/architect-io/stackctl/pkg/engine/executor"
	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/engine/module"
	"github.com/architect-io/stackctl/pkg/errors"
)

func testDefinitions() []*module.Definition {
	return []*module.Definition{
		{
			Name:   "network",
			Source: "./modules/network",
			Outputs: []module.OutputSpec{
				{Name: "vpc_id", Type: "string"},
			},
		},
		{
			Name:   "database",
			Source: "./modules/database",
			Parameters: []module.ParameterSpec{
				{Name: "vpc", Type: "string", Required: true},
			},
			Outputs: []module.OutputSpec{
				{Name: "host", Type: "string"},
				{Name: "engine", Type: "string"},
			},
		},
	}
}

func TestBuildAndExecute(t *testing.T) {
	instances := []*module.Instance{
		{Name: "net", Module: "network"},
		{
			Name:   "db",
			Module: "database",
			Params: map[string]expr.Expr{
				"vpc": expr.OutputRef{Instance: "net", Output: "vpc_id"},
			},
		},
	}

	plan, err := Build(testDefinitions(), instances, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"net", "db"}, plan.IDs())

	d := deployer.NewStaticDeployer(map[string]map[string]interface{}{
		"net": {"vpc_id": "vpc-123"},
		"db":  {"host": "db.internal", "engine": "postgres"},
	})

	result, err := Execute(context.Background(), plan, d, nil, executor.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, result.Success)

	host, ok := result.Store.Output("db", "host")
	require.True(t, ok)
	assert.Equal(t, "db.internal", host)
}

func TestBuild_DanglingReference(t *testing.T) {
	instances := []*module.Instance{
		{
			Name:   "db",
			Module: "database",
			Params: map[string]expr.Expr{
				"vpc": expr.OutputRef{Instance: "missing", Output: "vpc_id"},
			},
		},
	}

	_, err := Build(testDefinitions(), instances, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDanglingReference))
}

func TestSelectOutputs_FallbackOnFalseCondition(t *testing.T) {
	instances := []*module.Instance{
		{Name: "net", Module: "network"},
		{
			Name:      "db",
			Module:    "database",
			Condition: expr.ParamRef{Name: "with_db"},
			Params: map[string]expr.Expr{
				"vpc": expr.Literal{Value: "vpc-static"},
			},
		},
	}
	params := map[string]interface{}{"with_db": false}

	plan, err := Build(testDefinitions(), instances, params)
	require.NoError(t, err)
	assert.Equal(t, []string{"net"}, plan.IDs())
	assert.Equal(t, []string{"db"}, plan.Skipped)

	d := deployer.NewStaticDeployer(map[string]map[string]interface{}{
		"net": {"vpc_id": "vpc-123"},
	})
	result, err := Execute(context.Background(), plan, d, params, executor.DefaultOptions())
	require.NoError(t, err)

	// Falls back to the network output when the database is inactive.
	selections := map[string]expr.Expr{
		"endpoint": expr.Cond{
			If:   expr.ParamRef{Name: "with_db"},
			Then: expr.OutputRef{Instance: "db", Output: "host"},
			Else: expr.OutputRef{Instance: "net", Output: "vpc_id"},
		},
	}
	out, err := SelectOutputs(selections, params, result.Store)
	require.NoError(t, err)
	assert.Equal(t, "vpc-123", out["endpoint"])
}

func TestSelectOutputs_UnresolvedSource(t *testing.T) {
	instances := []*module.Instance{
		{Name: "net", Module: "network"},
	}

	plan, err := Build(testDefinitions(), instances, nil)
	require.NoError(t, err)

	result, err := Execute(context.Background(), plan, deployer.NewStaticDeployer(nil), nil, executor.DefaultOptions())
	require.NoError(t, err)

	selections := map[string]expr.Expr{
		"host": expr.OutputRef{Instance: "db", Output: "host"},
	}
	_, err = SelectOutputs(selections, nil, result.Store)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeUnresolvedOutput))
}
