// Package module defines the static model for deployable modules: their
// parameter and output contracts, and the bound instances of them that make
// up one deployment.
package module

import (
	"github.com/architect-io/stackctl/pkg/engine/expr"
)

// ParameterSpec declares one typed parameter of a module definition.
type ParameterSpec struct {
	Name     string
	Type     string
	Required bool
	Default  interface{}
}

// OutputSpec declares one typed output of a module definition.
type OutputSpec struct {
	Name string
	Type string
}

// Definition is the immutable static description of a module: its identity,
// the template body it deploys, and its declared parameter/output contracts.
type Definition struct {
	// Name is unique within the parent scope.
	Name string

	// Source is the path or reference to the module's template body. The
	// engine treats it as opaque and passes it through to the Deployer.
	Source string

	// Parameters preserves declaration order.
	Parameters []ParameterSpec

	Outputs []OutputSpec
}

// Parameter looks up a declared parameter by name.
func (d *Definition) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Output looks up a declared output by name.
func (d *Definition) Output(name string) (OutputSpec, bool) {
	for _, o := range d.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return OutputSpec{}, false
}

// Instance is one bound, named use of a module definition. Instances are
// immutable once built; only their resolved output values, held outside the
// instance, change as execution proceeds.
type Instance struct {
	// Name is the deployment name, unique among sibling instances.
	Name string

	// Module is the name of the definition this instance binds.
	Module string

	// Params maps parameter names to value expressions.
	Params map[string]expr.Expr

	// Condition controls whether the instance deploys. Nil means always.
	Condition expr.Expr
}

// Exprs returns every value expression feeding the instance: all parameter
// expressions plus the condition. Used by the reference resolver.
func (i *Instance) Exprs() []expr.Expr {
	exprs := make([]expr.Expr, 0, len(i.Params)+1)
	for _, e := range i.Params {
		exprs = append(exprs, e)
	}
	if i.Condition != nil {
		exprs = append(exprs, i.Condition)
	}
	return exprs
}
