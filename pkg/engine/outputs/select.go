package outputs

import (
	"sort"

	"github.com/architect-io/stackctl/pkg/engine/expr"
)

// Select evaluates the top-level output selection expressions against the
// final resolved outputs and returns the externally visible result set.
//
// A selection may be conditional (e.g. pick instance B's output when some
// condition holds, else instance A's); only the chosen branch is evaluated.
// Referencing an instance that never executed is an UnresolvedOutputError:
// a configuration error, surfaced rather than silently defaulted.
func Select(selections map[string]expr.Expr, params map[string]interface{}, src *Store) (map[string]interface{}, error) {
	scope := expr.Scope{Params: params, Outputs: src}

	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make(map[string]interface{}, len(selections))
	for _, name := range names {
		val, err := expr.Eval(selections[name], scope)
		if err != nil {
			return nil, err
		}
		result[name] = val
	}

	return result, nil
}
