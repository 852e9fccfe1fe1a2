// Package stack parses stack configuration files: module definitions,
// deployment declarations, stack parameters, and exported outputs.
package stack

import (
	"github.com/architect-io/stackctl/pkg/engine/expr"
)

// Schema is the raw parsed form of a stack file, before transformation into
// engine types.
type Schema struct {
	Version string

	Params  []ParamBlock
	Modules []ModuleBlock
	Deploys []DeployBlock

	// Outputs are the stack-level output selections, in declaration order
	// of their names.
	Outputs map[string]expr.Expr
}

// ParamBlock is a stack-level parameter declaration.
type ParamBlock struct {
	Name        string
	Type        string
	Description string
	Default     interface{}
	HasDefault  bool
	Required    bool
}

// ModuleBlock declares a reusable module template.
type ModuleBlock struct {
	Name       string
	Source     string
	Parameters []ParameterBlock
	Outputs    []OutputBlock
}

// ParameterBlock declares one module parameter.
type ParameterBlock struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     interface{}
}

// OutputBlock declares one module output.
type OutputBlock struct {
	Name        string
	Type        string
	Description string
}

// DeployBlock declares a deployment of a module under a unique name.
type DeployBlock struct {
	Name   string
	Module string

	// When gates the deployment; nil means always deploy.
	When expr.Expr

	// Params bind values to the module's parameters. Values may reference
	// stack params and other deployments' outputs.
	Params map[string]expr.Expr
}
