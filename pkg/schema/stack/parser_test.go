package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/stackctl/pkg/engine/expr"
)

const sampleStack = `
version = "v1"

param "environment" {
  type        = string
  description = "Deployment environment"
  default     = "dev"
}

param "region" {
  type     = string
  required = true
}

module "network" {
  source = "./modules/network"

  parameter "cidr" {
    type    = string
    default = "10.0.0.0/16"
  }

  output "vpc_id" {
    type = string
  }
}

module "database" {
  source = "./modules/database"

  parameter "vpc" {
    type     = string
    required = true
  }

  parameter "engine" {
    type    = string
    default = "postgres"
  }

  output "host" {
    type = string
  }

  output "engine" {
    type = string
  }
}

deploy "net" {
  module = "network"
}

deploy "db" {
  module = "database"
  when   = param.environment == "prod"
  params = {
    vpc    = module.net.vpc_id
    engine = "postgres"
  }
}

outputs {
  db_host = module.db.host
  region  = param.region
}
`

func TestParseBytes_FullStack(t *testing.T) {
	schema, diags, err := NewParser().ParseBytes([]byte(sampleStack), "stack.hcl")
	require.NoError(t, err)
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, "v1", schema.Version)

	require.Len(t, schema.Params, 2)
	assert.Equal(t, "environment", schema.Params[0].Name)
	assert.Equal(t, "string", schema.Params[0].Type)
	assert.Equal(t, "dev", schema.Params[0].Default)
	assert.True(t, schema.Params[0].HasDefault)
	assert.True(t, schema.Params[1].Required)
	assert.False(t, schema.Params[1].HasDefault)

	require.Len(t, schema.Modules, 2)
	network := schema.Modules[0]
	assert.Equal(t, "network", network.Name)
	assert.Equal(t, "./modules/network", network.Source)
	require.Len(t, network.Parameters, 1)
	assert.Equal(t, "10.0.0.0/16", network.Parameters[0].Default)
	require.Len(t, network.Outputs, 1)
	assert.Equal(t, "vpc_id", network.Outputs[0].Name)

	require.Len(t, schema.Deploys, 2)
	assert.Equal(t, "net", schema.Deploys[0].Name)
	assert.Nil(t, schema.Deploys[0].When)

	db := schema.Deploys[1]
	assert.Equal(t, "database", db.Module)
	assert.Equal(t, expr.Eq{
		Left:  expr.ParamRef{Name: "environment"},
		Right: expr.Literal{Value: "prod"},
	}, db.When)
	assert.Equal(t, expr.OutputRef{Instance: "net", Output: "vpc_id"}, db.Params["vpc"])
	assert.Equal(t, expr.Literal{Value: "postgres"}, db.Params["engine"])

	require.Len(t, schema.Outputs, 2)
	assert.Equal(t, expr.OutputRef{Instance: "db", Output: "host"}, schema.Outputs["db_host"])
	assert.Equal(t, expr.ParamRef{Name: "region"}, schema.Outputs["region"])
}

func TestParseBytes_TemplateBecomesConcat(t *testing.T) {
	src := `
module "m" {
  source = "./m"
  parameter "url" { type = string }
  output "host" { type = string }
}

deploy "a" {
  module = "m"
}

deploy "b" {
  module = "m"
  params = {
    url = "https://${module.a.host}/api"
  }
}
`
	schema, diags, err := NewParser().ParseBytes([]byte(src), "stack.hcl")
	require.NoError(t, err)
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, expr.Concat{Parts: []expr.Expr{
		expr.Literal{Value: "https://"},
		expr.OutputRef{Instance: "a", Output: "host"},
		expr.Literal{Value: "/api"},
	}}, schema.Deploys[1].Params["url"])
}

func TestParseBytes_ParamsBlockSyntax(t *testing.T) {
	src := `
module "m" {
  source = "./m"
  parameter "vpc" { type = string }
  parameter "engine" { type = string }
  output "host" { type = string }
}

deploy "a" {
  module = "m"
}

deploy "b" {
  module = "m"

  params {
    vpc    = module.a.host
    engine = "postgres"
  }
}
`
	schema, diags, err := NewParser().ParseBytes([]byte(src), "stack.hcl")
	require.NoError(t, err)
	require.False(t, diags.HasErrors(), diags.Error())

	b := schema.Deploys[1]
	assert.Equal(t, expr.OutputRef{Instance: "a", Output: "host"}, b.Params["vpc"])
	assert.Equal(t, expr.Literal{Value: "postgres"}, b.Params["engine"])
}

func TestParseBytes_ConditionalAndBoolOperators(t *testing.T) {
	src := `
module "m" {
  source = "./m"
  output "mode" { type = string }
}

deploy "a" {
  module = "m"
}

deploy "b" {
  module = "m"
  when   = param.enabled && !(module.a.mode == "off")
}

deploy "c" {
  module = "m"
  when   = param.primary ? true : param.fallback
}
`
	schema, diags, err := NewParser().ParseBytes([]byte(src), "stack.hcl")
	require.NoError(t, err)
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, expr.And{
		Left: expr.ParamRef{Name: "enabled"},
		Right: expr.Not{X: expr.Eq{
			Left:  expr.OutputRef{Instance: "a", Output: "mode"},
			Right: expr.Literal{Value: "off"},
		}},
	}, schema.Deploys[1].When)

	assert.Equal(t, expr.Cond{
		If:   expr.ParamRef{Name: "primary"},
		Then: expr.Literal{Value: true},
		Else: expr.ParamRef{Name: "fallback"},
	}, schema.Deploys[2].When)
}

func TestParseBytes_UnknownReferenceScope(t *testing.T) {
	src := `
module "m" {
  source = "./m"
}

deploy "a" {
  module = "m"
  when   = var.enabled
}
`
	_, diags, err := NewParser().ParseBytes([]byte(src), "stack.hcl")
	require.NoError(t, err)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), `unknown reference scope "var"`)
}

func TestParseBytes_NumericLiterals(t *testing.T) {
	src := `
module "m" {
  source = "./m"
  parameter "replicas" { type = number }
  parameter "ratio" { type = number }
}

deploy "a" {
  module = "m"
  params = {
    replicas = 3
    ratio    = 0.5
  }
}
`
	schema, diags, err := NewParser().ParseBytes([]byte(src), "stack.hcl")
	require.NoError(t, err)
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, expr.Literal{Value: 3}, schema.Deploys[0].Params["replicas"])
	assert.Equal(t, expr.Literal{Value: 0.5}, schema.Deploys[0].Params["ratio"])
}

func TestLoadFromBytes_TransformsToEngineTypes(t *testing.T) {
	st, err := LoadFromBytes([]byte(sampleStack), "stack.hcl")
	require.NoError(t, err)

	require.Len(t, st.Definitions, 2)
	assert.Equal(t, "network", st.Definitions[0].Name)
	require.Len(t, st.Instances, 2)
	assert.Equal(t, "net", st.Instances[0].Name)
	assert.Equal(t, "db", st.Instances[1].Name)
	assert.NotNil(t, st.Instances[1].Condition)
	assert.Len(t, st.Outputs, 2)
}

func TestLoadFromBytes_UnsupportedVersion(t *testing.T) {
	_, err := LoadFromBytes([]byte(`version = "v2"`), "stack.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestResolveParams(t *testing.T) {
	declared := []ParamBlock{
		{Name: "environment", Default: "dev", HasDefault: true},
		{Name: "region", Required: true},
	}

	vals, err := ResolveParams(declared, map[string]interface{}{"region": "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "dev", vals["environment"])
	assert.Equal(t, "us-east-1", vals["region"])
}

func TestResolveParams_Problems(t *testing.T) {
	declared := []ParamBlock{
		{Name: "region", Required: true},
	}

	_, err := ResolveParams(declared, map[string]interface{}{"regoin": "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown stack parameter "regoin"`)
	assert.Contains(t, err.Error(), `stack parameter "region" is required`)
}
