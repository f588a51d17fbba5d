package dice

import (
	"strconv"
	"strings"

	"github.com/louisbranch/sheetkit/internal/core/check"
)

// Expr is a node of a roll expression. String renders the host's roll
// syntax, for example "1d100 + 20[difficulty] < 40[skillPercent]".
type Expr interface {
	String() string
	eval(e *evaluator) (int, error)
}

// Dice rolls Count dice of Sides faces and sums them.
type Dice struct {
	Count int
	Sides int
}

func (d Dice) String() string {
	return strconv.Itoa(d.Count) + "d" + strconv.Itoa(d.Sides)
}

// Number is a constant, optionally tagged.
type Number struct {
	Value int
	Tag   string
}

func (n Number) String() string {
	s := strconv.Itoa(n.Value)
	if n.Tag != "" {
		s += "[" + n.Tag + "]"
	}
	return s
}

// Sum adds its terms left to right.
type Sum struct {
	Terms []Expr
}

func (s Sum) String() string {
	var b strings.Builder
	for i, term := range s.Terms {
		if i == 0 {
			b.WriteString(term.String())
			continue
		}
		if n, ok := term.(Number); ok && n.Value < 0 {
			b.WriteString(" - ")
			b.WriteString(Number{Value: -n.Value, Tag: n.Tag}.String())
			continue
		}
		b.WriteString(" + ")
		b.WriteString(term.String())
	}
	return b.String()
}

// Group parenthesizes its inner expression.
type Group struct {
	Inner Expr
}

func (g Group) String() string {
	return "(" + g.Inner.String() + ")"
}

// Comparison compares Left against Right. Its value is Left's total and it
// decides the roll's success.
type Comparison struct {
	Left  Expr
	Op    check.Op
	Right Expr
}

func (c Comparison) String() string {
	return c.Left.String() + " " + string(c.Op) + " " + c.Right.String()
}

// Ternary evaluates Then when Cond holds and Else otherwise. Dice in Cond's
// left side keep their rolled value inside Then.
type Ternary struct {
	Cond Comparison
	Then Expr
	Else Expr
}

func (t Ternary) String() string {
	return t.Cond.String() + " ? " + t.Then.String() + " : " + t.Else.String()
}

// Reroll rolls Dice again for as long as the result equals On.
type Reroll struct {
	Dice Dice
	On   int
}

func (r Reroll) String() string {
	return "reroll(" + r.Dice.String() + "," + strconv.Itoa(r.On) + ")"
}

// Explode adds another roll of Dice each time the maximum face comes up.
type Explode struct {
	Dice Dice
}

func (x Explode) String() string {
	return "expl(" + x.Dice.String() + ")"
}

// Tagged attaches tags to an expression.
type Tagged struct {
	Inner Expr
	Tags  []string
}

func (t Tagged) String() string {
	return "(" + t.Inner.String() + ")[" + strings.Join(t.Tags, ",") + "]"
}

// D builds count dice of sides faces.
func D(count, sides int) Dice { return Dice{Count: count, Sides: sides} }

// N builds an untagged constant.
func N(value int) Number { return Number{Value: value} }

// TaggedN builds a tagged constant.
func TaggedN(value int, tag string) Number { return Number{Value: value, Tag: tag} }

// Add sums terms.
func Add(terms ...Expr) Sum { return Sum{Terms: terms} }

// Paren groups an expression.
func Paren(inner Expr) Group { return Group{Inner: inner} }

// Compare builds a comparison.
func Compare(left Expr, op check.Op, right Expr) Comparison {
	return Comparison{Left: left, Op: op, Right: right}
}

// If builds a conditional.
func If(cond Comparison, then, otherwise Expr) Ternary {
	return Ternary{Cond: cond, Then: then, Else: otherwise}
}

// RerollOn builds a reroll on face on.
func RerollOn(d Dice, on int) Reroll { return Reroll{Dice: d, On: on} }

// Expl builds an exploding die.
func Expl(d Dice) Explode { return Explode{Dice: d} }

// Tag attaches tags to inner.
func Tag(inner Expr, tags ...string) Tagged { return Tagged{Inner: inner, Tags: tags} }

// Tags collects every tag in the expression in depth-first order.
func Tags(expr Expr) []string {
	var out []string
	walk(expr, func(node Expr) {
		switch n := node.(type) {
		case Number:
			if n.Tag != "" {
				out = append(out, n.Tag)
			}
		case Tagged:
			out = append(out, n.Tags...)
		}
	})
	return out
}

func walk(expr Expr, fn func(Expr)) {
	if expr == nil {
		return
	}
	fn(expr)
	switch n := expr.(type) {
	case Sum:
		for _, term := range n.Terms {
			walk(term, fn)
		}
	case Group:
		walk(n.Inner, fn)
	case Comparison:
		walk(n.Left, fn)
		walk(n.Right, fn)
	case Ternary:
		walk(n.Cond, fn)
		walk(n.Then, fn)
		walk(n.Else, fn)
	case Tagged:
		walk(n.Inner, fn)
	case Reroll:
		walk(n.Dice, fn)
	case Explode:
		walk(n.Dice, fn)
	}
}
