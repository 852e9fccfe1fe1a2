package graph

import (
	"fmt"

	"github.com/architect-io/stackctl/pkg/engine/module"
	"github.com/architect-io/stackctl/pkg/errors"
)

// Builder constructs dependency graphs from module definitions and instances.
type Builder struct {
	definitions map[string]*module.Definition
}

// NewBuilder creates a builder over the given module definitions.
func NewBuilder(definitions []*module.Definition) *Builder {
	byName := make(map[string]*module.Definition, len(definitions))
	for _, def := range definitions {
		byName[def.Name] = def
	}
	return &Builder{definitions: byName}
}

// Definitions returns the definition table, keyed by name.
func (b *Builder) Definitions() map[string]*module.Definition {
	return b.definitions
}

// Build constructs the dependency graph for a set of sibling instances.
// The graph contains exactly one node per instance and one edge per distinct
// (consumer, producer) pair. Structural problems (duplicate deployment
// names, instances binding unknown definitions, parameters outside the
// definition's contract) fail with an aggregated validation error; broken
// references fail with a DanglingReferenceError aggregating every failure.
func (b *Builder) Build(instances []*module.Instance) (*Graph, error) {
	g := NewGraph()
	byName := make(map[string]*module.Instance, len(instances))

	var structural []*errors.Error
	for _, inst := range instances {
		if _, dup := byName[inst.Name]; dup {
			structural = append(structural, errors.New(
				errors.ErrCodeValidation,
				fmt.Sprintf("duplicate deployment name %q", inst.Name),
			))
			continue
		}
		byName[inst.Name] = inst

		def, ok := b.definitions[inst.Module]
		if !ok {
			structural = append(structural, errors.New(
				errors.ErrCodeValidation,
				fmt.Sprintf("instance %q binds unknown module definition %q", inst.Name, inst.Module),
			))
			continue
		}

		structural = append(structural, validateParams(inst, def)...)

		node := &Node{
			ID:         inst.Name,
			Instance:   inst,
			Definition: def,
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}

	if len(structural) > 0 {
		return nil, aggregate(structural)
	}

	var dangling []*errors.Error
	for _, id := range g.Order() {
		node := g.GetNode(id)

		refs, problems := ResolveRefs(node.Instance, byName, b.definitions)
		if len(problems) > 0 {
			dangling = append(dangling, problems...)
			continue
		}

		for _, ref := range refs {
			if err := g.AddEdge(node.ID, ref.Instance); err != nil {
				return nil, err
			}
		}
	}

	if len(dangling) > 0 {
		return nil, errors.DanglingReferenceError(dangling)
	}

	return g, nil
}

// validateParams checks an instance's bound parameters against its
// definition: every bound name must be declared, and every required
// parameter without a default must be bound.
func validateParams(inst *module.Instance, def *module.Definition) []*errors.Error {
	var problems []*errors.Error

	for name := range inst.Params {
		if _, ok := def.Parameter(name); !ok {
			problems = append(problems, errors.New(
				errors.ErrCodeValidation,
				fmt.Sprintf("instance %q binds undeclared parameter %q of module %q", inst.Name, name, def.Name),
			))
		}
	}

	for _, spec := range def.Parameters {
		if !spec.Required || spec.Default != nil {
			continue
		}
		if _, ok := inst.Params[spec.Name]; !ok {
			problems = append(problems, errors.New(
				errors.ErrCodeValidation,
				fmt.Sprintf("instance %q is missing required parameter %q of module %q", inst.Name, spec.Name, def.Name),
			))
		}
	}

	return problems
}

// aggregate folds multiple validation problems into one error so callers
// report everything found in a single pass.
func aggregate(problems []*errors.Error) error {
	if len(problems) == 1 {
		return problems[0]
	}

	agg := errors.New(errors.ErrCodeValidation, fmt.Sprintf("%d problem(s) found", len(problems)))
	for _, p := range problems {
		agg.Message += "\n  - " + p.Message
	}
	return agg
}
