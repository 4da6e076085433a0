package entitycache

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/goliatone/go-entity-cache/i18n"
	"github.com/goliatone/go-entity-cache/schema"
)

// Comparator returns an ordering of entities on column. Translated columns
// compare their display text and collated columns compare with locale
// collation on case-folded text; other columns compare raw values. The
// returned function is not safe for concurrent use.
func (t *Table) Comparator(column string) (func(a, b *Entity) int, error) {
	col, ok := t.schema.Column(column)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownColumn, t.Name(), column)
	}
	i := col.Position

	switch {
	case col.Translated:
		collator := i18n.NewCollator(t.translator.Language())
		return func(a, b *Entity) int {
			return collator.Compare(t.display(col, a.at(i)), t.display(col, b.at(i)))
		}, nil
	case col.Collated:
		collator := i18n.NewCollator(t.translator.Language())
		return func(a, b *Entity) int {
			return collator.Compare(text(a.at(i)), text(b.at(i)))
		}, nil
	case col.Type == schema.TypeInteger:
		return func(a, b *Entity) int {
			x, _ := a.at(i).(int64)
			y, _ := b.at(i).(int64)
			return cmp.Compare(x, y)
		}, nil
	case col.Type.IsFloat():
		return func(a, b *Entity) int {
			x, _ := a.at(i).(float64)
			y, _ := b.at(i).(float64)
			return cmp.Compare(x, y)
		}, nil
	default:
		return func(a, b *Entity) int {
			return cmp.Compare(text(a.at(i)), text(b.at(i)))
		}, nil
	}
}

// Sort orders entities in place on column. Equal entities keep their order.
func (t *Table) Sort(entities []*Entity, column string, ascending bool) error {
	compare, err := t.Comparator(column)
	if err != nil {
		return err
	}
	slices.SortStableFunc(entities, func(a, b *Entity) int {
		if ascending {
			return compare(a, b)
		}
		return compare(b, a)
	})
	return nil
}

func (e *Entity) at(i int) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.values[i]
}

func text(v any) string {
	s, _ := v.(string)
	return s
}
