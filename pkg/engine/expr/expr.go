// Package expr defines the value expression model used to bind module
// instance parameters, conditions, and top-level output selections.
package expr

import (
	"fmt"
	"strings"
)

// Expr is a value expression. It is one of a small set of tagged variants:
// a literal, a reference to an outer parameter, a reference to another
// instance's output, or a composition of those (concatenation, equality,
// negation, conjunction, disjunction, conditional selection).
type Expr interface {
	// String renders the expression for diagnostics.
	String() string

	exprNode()
}

// Literal is a constant value.
type Literal struct {
	Value interface{}
}

// ParamRef references an outer-scope parameter by name.
type ParamRef struct {
	Name string
}

// OutputRef references a named output of another module instance.
type OutputRef struct {
	Instance string
	Output   string
}

// Concat joins the string renderings of its parts. Single-part expressions
// should not be wrapped; the schema layer unwraps them so references keep
// their native value type.
type Concat struct {
	Parts []Expr
}

// Eq compares two expressions for equality.
type Eq struct {
	Left, Right Expr
}

// Not negates a boolean expression.
type Not struct {
	X Expr
}

// And is a short-circuit conjunction.
type And struct {
	Left, Right Expr
}

// Or is a short-circuit disjunction.
type Or struct {
	Left, Right Expr
}

// Cond selects Then or Else based on the truth of If. Only the selected
// branch is evaluated, so an unresolved output in the untaken branch does
// not fail evaluation.
type Cond struct {
	If, Then, Else Expr
}

func (Literal) exprNode()   {}
func (ParamRef) exprNode()  {}
func (OutputRef) exprNode() {}
func (Concat) exprNode()    {}
func (Eq) exprNode()        {}
func (Not) exprNode()       {}
func (And) exprNode()       {}
func (Or) exprNode()        {}
func (Cond) exprNode()      {}

func (e Literal) String() string {
	if s, ok := e.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", e.Value)
}

func (e ParamRef) String() string {
	return "param." + e.Name
}

func (e OutputRef) String() string {
	return "module." + e.Instance + "." + e.Output
}

func (e Concat) String() string {
	parts := make([]string, len(e.Parts))
	for i, p := range e.Parts {
		parts[i] = p.String()
	}
	return strings.Join(parts, " + ")
}

func (e Eq) String() string {
	return fmt.Sprintf("%s == %s", e.Left, e.Right)
}

func (e Not) String() string {
	return "!" + e.X.String()
}

func (e And) String() string {
	return fmt.Sprintf("%s && %s", e.Left, e.Right)
}

func (e Or) String() string {
	return fmt.Sprintf("%s || %s", e.Left, e.Right)
}

func (e Cond) String() string {
	return fmt.Sprintf("%s ? %s : %s", e.If, e.Then, e.Else)
}

// Refs returns the output references an expression depends on, deduplicated,
// in left-to-right discovery order. A nil expression has no references.
func Refs(e Expr) []OutputRef {
	var refs []OutputRef
	seen := make(map[OutputRef]bool)

	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case nil:
		case Literal, ParamRef:
		case OutputRef:
			if !seen[v] {
				seen[v] = true
				refs = append(refs, v)
			}
		case Concat:
			for _, p := range v.Parts {
				walk(p)
			}
		case Eq:
			walk(v.Left)
			walk(v.Right)
		case Not:
			walk(v.X)
		case And:
			walk(v.Left)
			walk(v.Right)
		case Or:
			walk(v.Left)
			walk(v.Right)
		case Cond:
			walk(v.If)
			walk(v.Then)
			walk(v.Else)
		}
	}
	walk(e)

	return refs
}

// Params returns the outer-scope parameter names an expression references,
// deduplicated, in discovery order.
func Params(e Expr) []string {
	var names []string
	seen := make(map[string]bool)

	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case nil:
		case Literal, OutputRef:
		case ParamRef:
			if !seen[v.Name] {
				seen[v.Name] = true
				names = append(names, v.Name)
			}
		case Concat:
			for _, p := range v.Parts {
				walk(p)
			}
		case Eq:
			walk(v.Left)
			walk(v.Right)
		case Not:
			walk(v.X)
		case And:
			walk(v.Left)
			walk(v.Right)
		case Or:
			walk(v.Left)
			walk(v.Right)
		case Cond:
			walk(v.If)
			walk(v.Then)
			walk(v.Else)
		}
	}
	walk(e)

	return names
}
