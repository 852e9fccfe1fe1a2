package stack

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/architect-io/stackctl/pkg/engine/expr"
)

// convertExpr turns an HCL expression into the engine's expression tree.
// Stack files reference two scopes: param.<name> for stack parameters and
// module.<deploy>.<output> for other deployments' outputs. Everything
// without references is folded to a literal at parse time.
func convertExpr(e hcl.Expression) (expr.Expr, error) {
	// Reference-free expressions are static; fold them now.
	if len(e.Variables()) == 0 {
		val, diags := e.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate static expression: %s", diags.Error())
		}
		return expr.Literal{Value: fromCtyValue(val)}, nil
	}

	switch v := e.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		return convertTraversal(v.Traversal)

	case *hclsyntax.TemplateExpr:
		if len(v.Parts) == 1 {
			return convertExpr(v.Parts[0])
		}
		parts := make([]expr.Expr, 0, len(v.Parts))
		for _, part := range v.Parts {
			converted, err := convertExpr(part)
			if err != nil {
				return nil, err
			}
			parts = append(parts, converted)
		}
		return expr.Concat{Parts: parts}, nil

	case *hclsyntax.TemplateWrapExpr:
		return convertExpr(v.Wrapped)

	case *hclsyntax.ConditionalExpr:
		cond, err := convertExpr(v.Condition)
		if err != nil {
			return nil, err
		}
		then, err := convertExpr(v.TrueResult)
		if err != nil {
			return nil, err
		}
		els, err := convertExpr(v.FalseResult)
		if err != nil {
			return nil, err
		}
		return expr.Cond{If: cond, Then: then, Else: els}, nil

	case *hclsyntax.BinaryOpExpr:
		left, err := convertExpr(v.LHS)
		if err != nil {
			return nil, err
		}
		right, err := convertExpr(v.RHS)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case hclsyntax.OpEqual:
			return expr.Eq{Left: left, Right: right}, nil
		case hclsyntax.OpNotEqual:
			return expr.Not{X: expr.Eq{Left: left, Right: right}}, nil
		case hclsyntax.OpLogicalAnd:
			return expr.And{Left: left, Right: right}, nil
		case hclsyntax.OpLogicalOr:
			return expr.Or{Left: left, Right: right}, nil
		default:
			return nil, fmt.Errorf("unsupported binary operator at %s", v.Range())
		}

	case *hclsyntax.UnaryOpExpr:
		if v.Op != hclsyntax.OpLogicalNot {
			return nil, fmt.Errorf("unsupported unary operator at %s", v.Range())
		}
		inner, err := convertExpr(v.Val)
		if err != nil {
			return nil, err
		}
		return expr.Not{X: inner}, nil

	case *hclsyntax.ParenthesesExpr:
		return convertExpr(v.Expression)

	default:
		return nil, fmt.Errorf("unsupported expression at %s", e.Range())
	}
}

// convertTraversal maps param.<name> and module.<deploy>.<output> references.
func convertTraversal(t hcl.Traversal) (expr.Expr, error) {
	root, ok := t[0].(hcl.TraverseRoot)
	if !ok {
		return nil, fmt.Errorf("unsupported reference at %s", t.SourceRange())
	}

	switch root.Name {
	case "param":
		if len(t) != 2 {
			return nil, fmt.Errorf("param references take the form param.<name>, at %s", t.SourceRange())
		}
		attr, ok := t[1].(hcl.TraverseAttr)
		if !ok {
			return nil, fmt.Errorf("unsupported param reference at %s", t.SourceRange())
		}
		return expr.ParamRef{Name: attr.Name}, nil

	case "module":
		if len(t) != 3 {
			return nil, fmt.Errorf("module references take the form module.<deploy>.<output>, at %s", t.SourceRange())
		}
		inst, ok1 := t[1].(hcl.TraverseAttr)
		out, ok2 := t[2].(hcl.TraverseAttr)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unsupported module reference at %s", t.SourceRange())
		}
		return expr.OutputRef{Instance: inst.Name, Output: out.Name}, nil

	default:
		return nil, fmt.Errorf("unknown reference scope %q at %s (expected param or module)", root.Name, t.SourceRange())
	}
}

// convertObjectItems converts a params object expression attribute by
// attribute, preserving per-key expressions so references survive.
func convertObjectItems(e hcl.Expression) (map[string]expr.Expr, error) {
	obj, ok := e.(*hclsyntax.ObjectConsExpr)
	if !ok {
		// A reference-free object can still be folded whole.
		if len(e.Variables()) == 0 {
			val, diags := e.Value(nil)
			if diags.HasErrors() || !val.Type().IsObjectType() {
				return nil, fmt.Errorf("params must be an object, at %s", e.Range())
			}
			out := make(map[string]expr.Expr)
			for name, v := range val.AsValueMap() {
				out[name] = expr.Literal{Value: fromCtyValue(v)}
			}
			return out, nil
		}
		return nil, fmt.Errorf("params must be an object literal, at %s", e.Range())
	}

	out := make(map[string]expr.Expr, len(obj.Items))
	for _, item := range obj.Items {
		key, err := objectKey(item.KeyExpr)
		if err != nil {
			return nil, err
		}
		val, err := convertExpr(item.ValueExpr)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

func objectKey(e hclsyntax.Expression) (string, error) {
	if keyExpr, ok := e.(*hclsyntax.ObjectConsKeyExpr); ok {
		if name := hcl.ExprAsKeyword(keyExpr.Wrapped); name != "" {
			return name, nil
		}
		val, diags := keyExpr.Wrapped.Value(nil)
		if !diags.HasErrors() && val.Type() == cty.String {
			return val.AsString(), nil
		}
	}
	return "", fmt.Errorf("unsupported object key at %s", e.Range())
}
