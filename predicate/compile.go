package predicate

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Compile turns an expression into a bun WHERE fragment. Column names are
// passed as bun.Ident arguments and values are coerced to the column type,
// so the result is safe to hand to (*bun.SelectQuery).Where.
func Compile(e Expr) (string, []any, error) {
	var b strings.Builder
	var args []any
	if err := compile(&b, &args, e); err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

func compile(b *strings.Builder, args *[]any, e Expr) error {
	switch n := e.(type) {
	case Leaf:
		v, err := n.Column.Coerce(n.Value)
		if err != nil {
			return err
		}
		b.WriteString("? ")
		b.WriteString(n.Op.SQL())
		b.WriteString(" ?")
		*args = append(*args, bun.Ident(n.Column.Name), v)
	case Node:
		if len(n.Children) == 0 {
			// neutral element of the combiner
			if n.Combine == Or {
				b.WriteString("1 = 0")
			} else {
				b.WriteString("1 = 1")
			}
			return nil
		}
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(n.Combine.keyword())
			}
			if err := compile(b, args, c); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	case nil:
		b.WriteString("1 = 1")
	default:
		return fmt.Errorf("predicate: unsupported expression %T", e)
	}
	return nil
}
