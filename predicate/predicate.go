// Package predicate models typed column conditions combined with AND/OR.
//
// The same expression tree is compiled into a bun WHERE fragment for
// store-side filtering and evaluated directly against in-memory rows.
package predicate

import (
	"fmt"

	"github.com/goliatone/go-entity-cache/schema"
)

// Op is a comparison operator.
type Op int

const (
	EQ Op = iota
	NE
	GT
	GE
	LT
	LE
)

// SQL returns the SQL spelling of the operator.
func (o Op) SQL() string {
	switch o {
	case NE:
		return "!="
	case GT:
		return ">"
	case GE:
		return ">="
	case LT:
		return "<"
	case LE:
		return "<="
	default:
		return "="
	}
}

func (o Op) String() string {
	switch o {
	case NE:
		return "NE"
	case GT:
		return "GT"
	case GE:
		return "GE"
	case LT:
		return "LT"
	case LE:
		return "LE"
	default:
		return "EQ"
	}
}

// Combine joins the children of a node.
type Combine int

const (
	And Combine = iota
	Or
)

func (c Combine) keyword() string {
	if c == Or {
		return " OR "
	}
	return " AND "
}

func (c Combine) String() string {
	if c == Or {
		return "OR"
	}
	return "AND"
}

// Expr is a node of a predicate tree: either a Leaf or a Node.
type Expr interface {
	fmt.Stringer
	expr()
}

// Leaf is a single (column, operator, value) condition.
type Leaf struct {
	Column schema.Column
	Op     Op
	Value  any
}

func (Leaf) expr() {}

func (l Leaf) String() string {
	return fmt.Sprintf("%s %s %v", l.Column.Name, l.Op.SQL(), l.Value)
}

// Node combines child expressions.
type Node struct {
	Combine  Combine
	Children []Expr
}

func (Node) expr() {}

func (n Node) String() string {
	s := "("
	for i, c := range n.Children {
		if i > 0 {
			s += n.Combine.keyword()
		}
		s += c.String()
	}
	return s + ")"
}

// New builds a leaf condition.
func New(col schema.Column, op Op, v any) Leaf {
	return Leaf{Column: col, Op: op, Value: v}
}

func Eq(col schema.Column, v any) Leaf { return New(col, EQ, v) }
func Ne(col schema.Column, v any) Leaf { return New(col, NE, v) }
func Gt(col schema.Column, v any) Leaf { return New(col, GT, v) }
func Ge(col schema.Column, v any) Leaf { return New(col, GE, v) }
func Lt(col schema.Column, v any) Leaf { return New(col, LT, v) }
func Le(col schema.Column, v any) Leaf { return New(col, LE, v) }

// AllOf joins expressions with AND.
func AllOf(children ...Expr) Node { return Node{Combine: And, Children: children} }

// AnyOf joins expressions with OR.
func AnyOf(children ...Expr) Node { return Node{Combine: Or, Children: children} }

// Join joins expressions with the given combiner.
func Join(c Combine, children ...Expr) Node { return Node{Combine: c, Children: children} }
