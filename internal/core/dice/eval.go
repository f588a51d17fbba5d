package dice

import (
	"fmt"
	"math/rand"

	"github.com/louisbranch/sheetkit/internal/core/check"
	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
)

// maxChain bounds reroll and explode chains.
const maxChain = 100

// Outcome is the evaluated form of an expression.
type Outcome struct {
	Expression string
	Total      int
	// Compared is set when the top-level expression is a comparison.
	Compared bool
	Success  bool
	// Margin is how far the comparison passed or missed its target.
	Margin int
	Rolls    []Roll
	Tags     []string
}

// Evaluate rolls expr with faces drawn from rng.
func Evaluate(expr Expr, rng Source) (Outcome, error) {
	if expr == nil {
		return Outcome{}, ErrMissingDice
	}
	ev := &evaluator{rng: rng, bound: map[string]int{}}
	out := Outcome{Expression: expr.String(), Tags: Tags(expr)}

	root := expr
	for {
		if t, ok := root.(Tagged); ok {
			root = t.Inner
			continue
		}
		break
	}
	if cmp, ok := root.(Comparison); ok {
		left, err := cmp.Left.eval(ev)
		if err != nil {
			return Outcome{}, err
		}
		right, err := cmp.Right.eval(ev)
		if err != nil {
			return Outcome{}, err
		}
		res := check.Compare(left, cmp.Op, right)
		out.Total = left
		out.Compared = true
		out.Success = res.Success
		out.Margin = res.Margin
		out.Rolls = ev.rolls
		return out, nil
	}

	total, err := expr.eval(ev)
	if err != nil {
		return Outcome{}, err
	}
	out.Total = total
	out.Rolls = ev.rolls
	return out, nil
}

// EvaluateSeed rolls expr with a source seeded by seed.
func EvaluateSeed(expr Expr, seed int64) (Outcome, error) {
	return Evaluate(expr, rand.New(rand.NewSource(seed)))
}

type evaluator struct {
	rng   Source
	rolls []Roll
	// bound carries condition dice values into a ternary's Then branch.
	bound map[string]int
}

func (e *evaluator) roll(d Dice) (int, error) {
	if v, ok := e.bound[d.String()]; ok {
		delete(e.bound, d.String())
		return v, nil
	}
	roll, err := rollSpec(e.rng, Spec{Sides: d.Sides, Count: d.Count})
	if err != nil {
		return 0, err
	}
	e.rolls = append(e.rolls, roll)
	return roll.Total, nil
}

func (d Dice) eval(e *evaluator) (int, error) {
	return e.roll(d)
}

func (n Number) eval(*evaluator) (int, error) {
	return n.Value, nil
}

func (s Sum) eval(e *evaluator) (int, error) {
	if len(s.Terms) == 0 {
		return 0, invalid("empty sum")
	}
	total := 0
	for _, term := range s.Terms {
		v, err := term.eval(e)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

func (g Group) eval(e *evaluator) (int, error) {
	if g.Inner == nil {
		return 0, invalid("empty group")
	}
	return g.Inner.eval(e)
}

func (c Comparison) eval(e *evaluator) (int, error) {
	left, err := c.Left.eval(e)
	if err != nil {
		return 0, err
	}
	if _, err := c.Right.eval(e); err != nil {
		return 0, err
	}
	return left, nil
}

func (t Ternary) eval(e *evaluator) (int, error) {
	left, err := t.Cond.Left.eval(e)
	if err != nil {
		return 0, err
	}
	right, err := t.Cond.Right.eval(e)
	if err != nil {
		return 0, err
	}
	if !t.Cond.Op.Holds(left, right) {
		return t.Else.eval(e)
	}
	if d, ok := t.Cond.Left.(Dice); ok {
		e.bound[d.String()] = left
		defer delete(e.bound, d.String())
	}
	return t.Then.eval(e)
}

func (r Reroll) eval(e *evaluator) (int, error) {
	if r.On < 1 || r.On > r.Dice.Count*r.Dice.Sides {
		return 0, invalid(fmt.Sprintf("reroll face %d out of range for %s", r.On, r.Dice))
	}
	v, err := e.roll(r.Dice)
	if err != nil {
		return 0, err
	}
	for i := 0; v == r.On && i < maxChain; i++ {
		if v, err = e.roll(r.Dice); err != nil {
			return 0, err
		}
	}
	return v, nil
}

func (x Explode) eval(e *evaluator) (int, error) {
	top := x.Dice.Count * x.Dice.Sides
	if top <= 1 {
		return 0, invalid("cannot explode " + x.Dice.String())
	}
	total := 0
	for i := 0; i < maxChain; i++ {
		v, err := e.roll(x.Dice)
		if err != nil {
			return 0, err
		}
		total += v
		if v != top {
			break
		}
	}
	return total, nil
}

func (t Tagged) eval(e *evaluator) (int, error) {
	if t.Inner == nil {
		return 0, invalid("empty tagged expression")
	}
	return t.Inner.eval(e)
}

func invalid(message string) error {
	return apperrors.Wrap(apperrors.CodeDiceInvalidExpression, message, ErrInvalidExpression)
}
