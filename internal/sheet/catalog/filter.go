package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Predicate reports whether a row passes a filter.
type Predicate func(Row) bool

// Column declares a filterable column.
type Column struct {
	Name string
	Type *expr.Type
}

// SkillColumns are the filterable columns of the skills table.
var SkillColumns = []Column{
	{Name: "id", Type: filtering.TypeString},
	{Name: "label", Type: filtering.TypeString},
	{Name: "section", Type: filtering.TypeString},
	{Name: "stats", Type: filtering.TypeString},
}

// DifficultyColumns are the filterable columns of the rolldiff table.
var DifficultyColumns = []Column{
	{Name: "id", Type: filtering.TypeString},
	{Name: "label", Type: filtering.TypeString},
	{Name: "value", Type: filtering.TypeInt},
}

func matchAll(Row) bool { return true }

// ParseFilter parses an AIP-160 filter expression (for example
// `section = "universal" AND label : "sw"`) into a row predicate. An empty
// filter matches every row.
func ParseFilter(filterStr string, columns []Column) (Predicate, error) {
	if strings.TrimSpace(filterStr) == "" {
		return matchAll, nil
	}

	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, col := range columns {
		opts = append(opts, filtering.DeclareIdent(col.Name, col.Type))
	}
	decls, err := filtering.NewDeclarations(opts...)
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}

	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	if filter.CheckedExpr == nil {
		return matchAll, nil
	}
	return translateExpr(filter.CheckedExpr.GetExpr())
}

// Filter returns the rows of t that pass the filter.
func Filter(t Table, filterStr string, columns []Column) ([]Row, error) {
	pred, err := ParseFilter(filterStr, columns)
	if err != nil {
		return nil, err
	}
	var out []Row
	t.Each(func(row Row) {
		if pred(row) {
			out = append(out, row)
		}
	})
	return out, nil
}

func translateExpr(e *expr.Expr) (Predicate, error) {
	if e == nil {
		return matchAll, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call) (Predicate, error) {
	switch call.Function {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd, "_&&_":
		return translateLogical(call.Args, true)
	case filtering.FunctionOr, "_||_":
		return translateLogical(call.Args, false)
	case filtering.FunctionNot, "!_":
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translateExpr(call.Args[0])
		if err != nil {
			return nil, err
		}
		return func(row Row) bool { return !inner(row) }, nil
	case filtering.FunctionHas:
		return translateComparison(call.Args, ":")
	case filtering.FunctionEquals, filtering.FunctionNotEquals,
		filtering.FunctionLessThan, filtering.FunctionLessEquals,
		filtering.FunctionGreaterThan, filtering.FunctionGreaterEquals:
		return translateComparison(call.Args, call.Function)
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateLogical(args []*expr.Expr, and bool) (Predicate, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("logical operator requires 2 arguments")
	}
	preds := make([]Predicate, 0, len(args))
	for _, arg := range args {
		p, err := translateExpr(arg)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if and {
		return func(row Row) bool {
			for _, p := range preds {
				if !p(row) {
					return false
				}
			}
			return true
		}, nil
	}
	return func(row Row) bool {
		for _, p := range preds {
			if p(row) {
				return true
			}
		}
		return false
	}, nil
}

func translateComparison(args []*expr.Expr, op string) (Predicate, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}

	column, err := extractFieldName(args[0])
	if err != nil {
		return nil, err
	}
	value, err := extractConstValue(args[1])
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case string:
		return func(row Row) bool {
			return compareStrings(row.String(column), v, op)
		}, nil
	case int64:
		return func(row Row) bool {
			n, ok := row.Int(column)
			return ok && compareNumbers(float64(n), float64(v), op)
		}, nil
	case float64:
		return func(row Row) bool {
			n, err := strconv.ParseFloat(row.String(column), 64)
			return err == nil && compareNumbers(n, v, op)
		}, nil
	case bool:
		return func(row Row) bool {
			b, err := strconv.ParseBool(row.String(column))
			if err != nil {
				return false
			}
			switch op {
			case filtering.FunctionEquals:
				return b == v
			case filtering.FunctionNotEquals:
				return b != v
			default:
				return false
			}
		}, nil
	default:
		return nil, fmt.Errorf("unsupported constant %T", value)
	}
}

func compareStrings(a, b, op string) bool {
	switch op {
	case ":":
		return strings.Contains(strings.ToLower(a), strings.ToLower(b))
	case filtering.FunctionEquals:
		return a == b
	case filtering.FunctionNotEquals:
		return a != b
	case filtering.FunctionLessThan:
		return a < b
	case filtering.FunctionLessEquals:
		return a <= b
	case filtering.FunctionGreaterThan:
		return a > b
	case filtering.FunctionGreaterEquals:
		return a >= b
	default:
		return false
	}
}

func compareNumbers(a, b float64, op string) bool {
	switch op {
	case filtering.FunctionEquals:
		return a == b
	case filtering.FunctionNotEquals:
		return a != b
	case filtering.FunctionLessThan:
		return a < b
	case filtering.FunctionLessEquals:
		return a <= b
	case filtering.FunctionGreaterThan:
		return a > b
	case filtering.FunctionGreaterEquals:
		return a >= b
	default:
		return false
	}
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractConstValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant, got %T", e.ExprKind)
	}

	switch c := kind.ConstExpr.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return c.StringValue, nil
	case *expr.Constant_Int64Value:
		return c.Int64Value, nil
	case *expr.Constant_DoubleValue:
		return c.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return c.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", c)
	}
}
