package stack

import (
	"fmt"

	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/engine/module"
	"github.com/architect-io/stackctl/pkg/errors"
)

// Stack is the engine-ready form of a parsed stack file.
type Stack struct {
	// SourcePath is the file the stack was loaded from, when known.
	SourcePath string

	Params      []ParamBlock
	Definitions []*module.Definition
	Instances   []*module.Instance
	Outputs     map[string]expr.Expr
}

// Transformer converts parsed schemas into engine types.
type Transformer struct{}

// NewTransformer creates a new transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform maps the raw schema onto module definitions and instances.
// Definitions and instances keep their declaration order; the planner relies
// on it for deterministic tie-breaking.
func (t *Transformer) Transform(schema *Schema) (*Stack, error) {
	st := &Stack{Outputs: schema.Outputs}
	st.Params = append(st.Params, schema.Params...)

	for _, mod := range schema.Modules {
		def := &module.Definition{
			Name:   mod.Name,
			Source: mod.Source,
		}
		for _, p := range mod.Parameters {
			def.Parameters = append(def.Parameters, module.ParameterSpec{
				Name:     p.Name,
				Type:     p.Type,
				Required: p.Required,
				Default:  p.Default,
			})
		}
		for _, o := range mod.Outputs {
			def.Outputs = append(def.Outputs, module.OutputSpec{
				Name: o.Name,
				Type: o.Type,
			})
		}
		st.Definitions = append(st.Definitions, def)
	}

	for _, dep := range schema.Deploys {
		inst := &module.Instance{
			Name:      dep.Name,
			Module:    dep.Module,
			Condition: dep.When,
			Params:    dep.Params,
		}
		if inst.Params == nil {
			inst.Params = map[string]expr.Expr{}
		}
		st.Instances = append(st.Instances, inst)
	}

	return st, nil
}

// ResolveParams merges override values over declared stack parameters,
// applying defaults and rejecting unknown names and missing required values.
// All problems are collected before reporting.
func ResolveParams(declared []ParamBlock, overrides map[string]interface{}) (map[string]interface{}, error) {
	byName := make(map[string]ParamBlock, len(declared))
	for _, p := range declared {
		byName[p.Name] = p
	}

	var problems []*errors.Error
	for name := range overrides {
		if _, ok := byName[name]; !ok {
			problems = append(problems, errors.New(
				errors.ErrCodeValidation,
				fmt.Sprintf("unknown stack parameter %q", name),
			))
		}
	}

	values := make(map[string]interface{}, len(declared))
	for _, p := range declared {
		if v, ok := overrides[p.Name]; ok {
			values[p.Name] = v
			continue
		}
		if p.HasDefault {
			values[p.Name] = p.Default
			continue
		}
		if p.Required {
			problems = append(problems, errors.New(
				errors.ErrCodeValidation,
				fmt.Sprintf("stack parameter %q is required", p.Name),
			))
		}
	}

	if len(problems) > 0 {
		if len(problems) == 1 {
			return nil, problems[0]
		}
		agg := errors.New(errors.ErrCodeValidation, fmt.Sprintf("%d parameter problem(s)", len(problems)))
		for _, p := range problems {
			agg.Message += "\n  - " + p.Message
		}
		return nil, agg
	}

	return values, nil
}
