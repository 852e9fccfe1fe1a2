package expr

import (
	"fmt"
	"reflect"

	"github.com/architect-io/stackctl/pkg/errors"
)

// OutputSource supplies resolved outputs of already-executed instances.
type OutputSource interface {
	// Output returns the named output of an instance. The second return is
	// false when the instance has not published or lacks that output.
	Output(instance, output string) (interface{}, bool)

	// Has reports whether an instance has published its outputs.
	Has(instance string) bool
}

// Scope provides the bound values an expression is evaluated against.
type Scope struct {
	// Params are the outer-scope parameter values, always available.
	Params map[string]interface{}

	// Outputs supplies resolved instance outputs. May be nil when
	// evaluating expressions that cannot contain output references.
	Outputs OutputSource
}

// Eval evaluates an expression against a scope. A nil expression evaluates
// to nil. References to missing parameters or unresolved outputs are errors.
func Eval(e Expr, scope Scope) (interface{}, error) {
	switch v := e.(type) {
	case nil:
		return nil, nil

	case Literal:
		return v.Value, nil

	case ParamRef:
		val, ok := scope.Params[v.Name]
		if !ok {
			return nil, errors.New(errors.ErrCodeExpression, fmt.Sprintf("parameter %q is not bound", v.Name))
		}
		return val, nil

	case OutputRef:
		if scope.Outputs == nil || !scope.Outputs.Has(v.Instance) {
			return nil, errors.UnresolvedOutputError(v.Instance, v.Output)
		}
		val, ok := scope.Outputs.Output(v.Instance, v.Output)
		if !ok {
			return nil, errors.MissingOutputError(v.Instance, v.Output)
		}
		return val, nil

	case Concat:
		if len(v.Parts) == 1 {
			return Eval(v.Parts[0], scope)
		}
		var out string
		for _, p := range v.Parts {
			val, err := Eval(p, scope)
			if err != nil {
				return nil, err
			}
			out += fmt.Sprintf("%v", val)
		}
		return out, nil

	case Eq:
		left, err := Eval(v.Left, scope)
		if err != nil {
			return nil, err
		}
		right, err := Eval(v.Right, scope)
		if err != nil {
			return nil, err
		}
		return valuesEqual(left, right), nil

	case Not:
		val, err := EvalBool(v.X, scope)
		if err != nil {
			return nil, err
		}
		return !val, nil

	case And:
		left, err := EvalBool(v.Left, scope)
		if err != nil {
			return nil, err
		}
		if !left {
			return false, nil
		}
		return EvalBool(v.Right, scope)

	case Or:
		left, err := EvalBool(v.Left, scope)
		if err != nil {
			return nil, err
		}
		if left {
			return true, nil
		}
		return EvalBool(v.Right, scope)

	case Cond:
		take, err := EvalBool(v.If, scope)
		if err != nil {
			return nil, err
		}
		if take {
			return Eval(v.Then, scope)
		}
		return Eval(v.Else, scope)

	default:
		return nil, errors.New(errors.ErrCodeExpression, fmt.Sprintf("unsupported expression type %T", e))
	}
}

// EvalBool evaluates an expression and coerces the result to a boolean.
// Booleans are used directly; strings are truthy when non-empty; any other
// value is truthy when non-nil. A nil expression is true (no condition).
func EvalBool(e Expr, scope Scope) (bool, error) {
	if e == nil {
		return true, nil
	}

	val, err := Eval(e, scope)
	if err != nil {
		return false, err
	}

	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		return v != "", nil
	default:
		return v != nil, nil
	}
}

// valuesEqual compares two evaluated values. Numeric values are compared
// after normalization so int and float representations of the same number
// compare equal.
func valuesEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
