package graph

import (
	"fmt"

	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/engine/module"
	"github.com/architect-io/stackctl/pkg/errors"
)

// ResolveRefs extracts the output references an instance depends on, across
// all of its parameter expressions and its condition, and validates each one
// against the scope's instance table and the referenced instance's module
// definition. It is a pure function: no side effects.
//
// All failures are collected rather than returned one at a time, so callers
// can report every broken reference in one pass.
func ResolveRefs(
	inst *module.Instance,
	instances map[string]*module.Instance,
	definitions map[string]*module.Definition,
) ([]expr.OutputRef, []*errors.Error) {
	var refs []expr.OutputRef
	var problems []*errors.Error
	seen := make(map[expr.OutputRef]bool)

	for _, e := range inst.Exprs() {
		for _, ref := range expr.Refs(e) {
			if seen[ref] {
				continue
			}
			seen[ref] = true

			if ref.Instance == inst.Name {
				problems = append(problems, errors.New(
					errors.ErrCodeValidation,
					fmt.Sprintf("instance %q references its own output %q", inst.Name, ref.Output),
				))
				continue
			}

			target, ok := instances[ref.Instance]
			if !ok {
				problems = append(problems, errors.UnknownModuleError(inst.Name, ref.Instance))
				continue
			}

			def, ok := definitions[target.Module]
			if !ok {
				// The target instance itself is broken; its own resolution
				// reports the missing definition.
				continue
			}

			if _, ok := def.Output(ref.Output); !ok {
				problems = append(problems, errors.UnknownOutputError(inst.Name, ref.Instance, ref.Output))
				continue
			}

			refs = append(refs, ref)
		}
	}

	return refs, problems
}
