package predicate

import (
	"cmp"

	"golang.org/x/text/cases"

	"github.com/goliatone/go-entity-cache/schema"
)

// Row exposes column values of an in-memory record.
type Row interface {
	Value(column string) (any, bool)
}

// Match evaluates e against row. Text columns compare on Unicode case-folded
// text; numeric columns compare by value. A value that cannot be coerced to
// its column type never matches. A nil expression matches every row.
func Match(e Expr, row Row) bool {
	switch n := e.(type) {
	case nil:
		return true
	case Leaf:
		return matchLeaf(n, row)
	case Node:
		if n.Combine == Or {
			for _, c := range n.Children {
				if Match(c, row) {
					return true
				}
			}
			return false
		}
		for _, c := range n.Children {
			if !Match(c, row) {
				return false
			}
		}
		return true
	}
	return false
}

func matchLeaf(l Leaf, row Row) bool {
	got, ok := row.Value(l.Column.Name)
	if !ok {
		return false
	}
	want, err := l.Column.Coerce(l.Value)
	if err != nil {
		return false
	}
	have, err := l.Column.Coerce(got)
	if err != nil {
		return false
	}
	return l.Op.holds(compareValues(l.Column, have, want))
}

func (o Op) holds(c int) bool {
	switch o {
	case NE:
		return c != 0
	case GT:
		return c > 0
	case GE:
		return c >= 0
	case LT:
		return c < 0
	case LE:
		return c <= 0
	default:
		return c == 0
	}
}

// compareValues compares two coerced values of col.
func compareValues(col schema.Column, a, b any) int {
	switch {
	case col.Type == schema.TypeInteger:
		return cmp.Compare(a.(int64), b.(int64))
	case col.Type.IsFloat():
		return cmp.Compare(a.(float64), b.(float64))
	case col.Type == schema.TypeText:
		folder := cases.Fold()
		return cmp.Compare(folder.String(a.(string)), folder.String(b.(string)))
	default:
		return cmp.Compare(a.(string), b.(string))
	}
}
