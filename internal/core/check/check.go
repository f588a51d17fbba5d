// Package check resolves comparison outcomes for rolled totals.
package check

// Op is a comparison operator as written in roll expressions.
type Op string

const (
	Less         Op = "<"
	LessEqual    Op = "<="
	Greater      Op = ">"
	GreaterEqual Op = ">="
	Equal        Op = "="
)

// Holds reports whether "total op target" is true.
func (o Op) Holds(total, target int) bool {
	switch o {
	case Less:
		return total < target
	case LessEqual:
		return total <= target
	case Greater:
		return total > target
	case GreaterEqual:
		return total >= target
	case Equal:
		return total == target
	default:
		return false
	}
}

// Margin calculates the margin of success or failure for op. Positive values
// indicate success for ordered operators.
func Margin(total, target int, op Op) int {
	switch op {
	case Less, LessEqual:
		return target - total
	default:
		return total - target
	}
}

// Result represents the outcome of a comparison.
type Result struct {
	Success bool
	Margin  int
}

// Compare resolves "total op target".
func Compare(total int, op Op, target int) Result {
	return Result{
		Success: op.Holds(total, target),
		Margin:  Margin(total, target, op),
	}
}

