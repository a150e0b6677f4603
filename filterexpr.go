package graphom

import (
	"fmt"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// ParseFilter compiles a textual filter expression into a condition tree,
// so callers can pass filters without touching the builder types:
//
//	conds, err := graphom.ParseFilter(`issue.state == "closed" or issue.weight > 3`)
//
// Supported forms: alias.property compared with ==, !=, >, >=, <, <=,
// contains, startsWith, endsWith, matches and in; == nil / != nil for
// null checks; and/or grouping with arbitrary nesting. Anything else is a
// query compilation error.
func ParseFilter(src string) ([]Condition, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryCompilation, err)
	}

	return lowerConditions(tree.Node)
}

// lowerConditions flattens top-level AND into the condition list.
func lowerConditions(n ast.Node) ([]Condition, error) {
	if b, ok := n.(*ast.BinaryNode); ok && isAnd(b.Operator) {
		left, err := lowerConditions(b.Left)
		if err != nil {
			return nil, err
		}

		right, err := lowerConditions(b.Right)
		if err != nil {
			return nil, err
		}

		return append(left, right...), nil
	}

	c, err := lowerCondition(n)
	if err != nil {
		return nil, err
	}

	return []Condition{c}, nil
}

func lowerCondition(n ast.Node) (Condition, error) {
	b, ok := n.(*ast.BinaryNode)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported filter expression %T", ErrQueryCompilation, n)
	}

	if isOr(b.Operator) {
		branches, err := collectOr(b)
		if err != nil {
			return nil, err
		}

		return OrCondition{Conditions: branches}, nil
	}

	if isAnd(b.Operator) {
		// AND below an OR branch; keep the branch a single condition by
		// rejecting it rather than guessing at grouping.
		return nil, fmt.Errorf("%w: AND inside an OR branch is not supported; restructure the filter", ErrQueryCompilation)
	}

	path, err := lowerPath(b.Left)
	if err != nil {
		return nil, err
	}

	value, err := lowerValue(b.Right)
	if err != nil {
		return nil, err
	}

	op, err := lowerOperator(b.Operator, value)
	if err != nil {
		return nil, err
	}

	if !op.takesValue() {
		return PropertyCondition{Path: path, Op: op}, nil
	}

	return PropertyCondition{Path: path, Op: op, Value: value}, nil
}

// collectOr flattens a chain of ORs into sibling branches.
func collectOr(b *ast.BinaryNode) ([]Condition, error) {
	var out []Condition

	for _, side := range []ast.Node{b.Left, b.Right} {
		if sub, ok := side.(*ast.BinaryNode); ok && isOr(sub.Operator) {
			branches, err := collectOr(sub)
			if err != nil {
				return nil, err
			}

			out = append(out, branches...)

			continue
		}

		c, err := lowerCondition(side)
		if err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, nil
}

func lowerOperator(op string, value any) (Operator, error) {
	switch op {
	case "==":
		if value == nil {
			return OpIsNull, nil
		}

		return OpEqual, nil
	case "!=":
		if value == nil {
			return OpIsNotNull, nil
		}

		return OpNotEqual, nil
	case ">":
		return OpGreater, nil
	case ">=":
		return OpGreaterEqual, nil
	case "<":
		return OpLess, nil
	case "<=":
		return OpLessEqual, nil
	case "contains":
		return OpContains, nil
	case "startsWith":
		return OpStartsWith, nil
	case "endsWith":
		return OpEndsWith, nil
	case "matches":
		return OpMatches, nil
	case "in":
		return OpIn, nil
	default:
		return "", fmt.Errorf("%w: unsupported operator %q", ErrQueryCompilation, op)
	}
}

// lowerPath renders member access chains as dot paths.
func lowerPath(n ast.Node) (string, error) {
	switch t := n.(type) {
	case *ast.IdentifierNode:
		return t.Value, nil

	case *ast.MemberNode:
		base, err := lowerPath(t.Node)
		if err != nil {
			return "", err
		}

		prop, ok := t.Property.(*ast.StringNode)
		if !ok {
			return "", fmt.Errorf("%w: computed member access is not supported", ErrQueryCompilation)
		}

		return base + "." + prop.Value, nil

	default:
		return "", fmt.Errorf("%w: expected a property path, got %T", ErrQueryCompilation, n)
	}
}

func lowerValue(n ast.Node) (any, error) {
	switch t := n.(type) {
	case *ast.StringNode:
		return t.Value, nil
	case *ast.IntegerNode:
		return t.Value, nil
	case *ast.FloatNode:
		return t.Value, nil
	case *ast.BoolNode:
		return t.Value, nil
	case *ast.NilNode:
		return nil, nil
	case *ast.ArrayNode:
		out := make([]any, 0, len(t.Nodes))

		for _, e := range t.Nodes {
			v, err := lowerValue(e)
			if err != nil {
				return nil, err
			}

			out = append(out, v)
		}

		return out, nil
	case *ast.UnaryNode:
		if t.Operator == "-" {
			v, err := lowerValue(t.Node)
			if err != nil {
				return nil, err
			}

			switch n := v.(type) {
			case int:
				return -n, nil
			case float64:
				return -n, nil
			}
		}

		return nil, fmt.Errorf("%w: unsupported unary %q in filter value", ErrQueryCompilation, t.Operator)
	default:
		return nil, fmt.Errorf("%w: unsupported filter value %T", ErrQueryCompilation, n)
	}
}

func isAnd(op string) bool { return op == "and" || op == "&&" }
func isOr(op string) bool  { return op == "or" || op == "||" }
