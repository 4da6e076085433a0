package entitycache

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-entity-cache/schema"
)

// Entity is one in-memory row of a table. Values are held in column order as
// int64, float64 or string according to the column type. An Entity is safe
// for concurrent use.
type Entity struct {
	mu     sync.RWMutex
	table  *Table
	values []any

	sentinel bool
	// cached is set while the entity is part of the owning collection.
	cached bool
}

func newEntity(t *Table) *Entity {
	s := t.schema
	values := make([]any, s.NumColumns())
	for i := range values {
		values[i] = s.ColumnAt(i).Zero()
	}
	values[s.PrimaryKey().Position] = int64(-1)
	return &Entity{table: t, values: values}
}

func entityFromRow(t *Table, row []any) *Entity {
	return &Entity{table: t, values: slices.Clone(row)}
}

// Table returns the runtime the entity belongs to.
func (e *Entity) Table() *Table { return e.table }

// IsSentinel reports whether e is the not-found sentinel of its table.
func (e *Entity) IsSentinel() bool { return e.sentinel }

// ID returns the primary key, -1 for unsaved entities and the sentinel.
func (e *Entity) ID() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.id()
}

func (e *Entity) id() int64 {
	id, _ := e.values[e.table.schema.PrimaryKey().Position].(int64)
	return id
}

func (e *Entity) setID(id int64) {
	e.mu.Lock()
	e.values[e.table.schema.PrimaryKey().Position] = id
	e.mu.Unlock()
}

// Value returns the value of column. It implements predicate.Row.
func (e *Entity) Value(column string) (any, bool) {
	i, err := e.table.schema.Lookup(column)
	if err != nil {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.values[i], true
}

// Get returns the value of column or schema.ErrUnknownColumn.
func (e *Entity) Get(column string) (any, error) {
	i, err := e.table.schema.Lookup(column)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.values[i], nil
}

// Int returns an INTEGER column value, or 0.
func (e *Entity) Int(column string) int64 {
	v, _ := e.Value(column)
	n, _ := v.(int64)
	return n
}

// Float returns a REAL or NUMERIC column value, or 0.
func (e *Entity) Float(column string) float64 {
	v, _ := e.Value(column)
	f, _ := v.(float64)
	return f
}

// Text returns a TEXT, BLOB or DATE column value, or "".
func (e *Entity) Text(column string) string {
	v, _ := e.Value(column)
	s, _ := v.(string)
	return s
}

// Set coerces v to the column type and stores it. The key of an entity
// that already holds a positive id cannot be changed.
func (e *Entity) Set(column string, v any) error {
	if e.sentinel {
		return ErrSentinel
	}
	col, ok := e.table.schema.Column(column)
	if !ok {
		return fmt.Errorf("%w: %s.%s", schema.ErrUnknownColumn, e.table.Name(), column)
	}
	coerced, err := col.Coerce(v)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if col.PrimaryKey && e.id() > 0 && coerced != e.id() {
		return ErrImmutableKey
	}
	e.values[col.Position] = coerced
	return nil
}

// MustSet is Set that panics on error.
func (e *Entity) MustSet(column string, v any) *Entity {
	if err := e.Set(column, v); err != nil {
		panic(err)
	}
	return e
}

// Values returns a copy of the values in column order.
func (e *Entity) Values() []any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.values)
}

func (e *Entity) overwrite(values []any) {
	e.mu.Lock()
	copy(e.values, values)
	e.mu.Unlock()
}

// Equals reports whether both entities hold exactly the same values.
func (e *Entity) Equals(o *Entity) bool {
	if e == o {
		return true
	}
	if o == nil || e.table.schema != o.table.schema {
		return false
	}
	return slices.Equal(e.Values(), o.Values())
}

// Compare orders entities by id.
func (e *Entity) Compare(o *Entity) int {
	return cmp.Compare(e.ID(), o.ID())
}

// Save persists the entity through its table.
func (e *Entity) Save(ctx context.Context, opts ...SaveOption) bool {
	return e.table.Save(ctx, e, opts...)
}

// Remove deletes the entity through its table and resets its id to -1.
func (e *Entity) Remove(ctx context.Context) bool {
	return e.table.RemoveEntity(ctx, e)
}

// String renders "Table{COL=value, ...}".
func (e *Entity) String() string {
	values := e.Values()
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%s=%v", e.table.schema.ColumnAt(i).Name, v)
	}
	return e.table.Name() + "{" + strings.Join(parts, ", ") + "}"
}
