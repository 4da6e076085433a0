package entitycache

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/goliatone/go-entity-cache/predicate"
	"github.com/goliatone/go-entity-cache/store"
)

// FindBy filters rows in the store with preds joined by combine. Matching
// rows are returned as disconnected snapshots; failures yield an empty
// slice.
func (t *Table) FindBy(ctx context.Context, combine predicate.Combine, preds ...predicate.Expr) []*Entity {
	entities, _ := t.Query(ctx, predicate.Join(combine, preds...))
	return entities
}

// Query filters rows in the store with expr, ordered by id.
func (t *Table) Query(ctx context.Context, expr predicate.Expr) ([]*Entity, error) {
	order := &store.Order{Column: t.schema.PrimaryKey().Name}
	return t.selectSnapshots(ctx, "find_by", expr, order)
}

// ListOption configures All and List.
type ListOption func(*store.Order)

// OrderBy sorts the listing by column, ignoring case.
func OrderBy(column string) ListOption {
	return func(o *store.Order) {
		o.Column = column
	}
}

// Descending reverses the listing order.
func Descending() ListOption {
	return func(o *store.Order) {
		o.Descending = true
	}
}

// All returns every row as disconnected snapshots, optionally ordered.
// Failures yield an empty slice.
func (t *Table) All(ctx context.Context, opts ...ListOption) []*Entity {
	entities, _ := t.List(ctx, opts...)
	return entities
}

// List is All with an error.
func (t *Table) List(ctx context.Context, opts ...ListOption) ([]*Entity, error) {
	var order store.Order
	for _, opt := range opts {
		opt(&order)
	}
	return t.selectSnapshots(ctx, "all", nil, &order)
}

func (t *Table) selectSnapshots(ctx context.Context, op string, expr predicate.Expr, order *store.Order) ([]*Entity, error) {
	rows, err := t.store.Select(ctx, t.schema, expr, order)
	if err != nil {
		t.storeFailure(op, err)
		return []*Entity{}, err
	}
	out := make([]*Entity, len(rows))
	for i, row := range rows {
		out[i] = entityFromRow(t, row)
	}
	return out, nil
}

// Match evaluates preds, joined by AND, against the values held by e.
func (t *Table) Match(e *Entity, preds ...predicate.Expr) bool {
	if e == nil {
		return false
	}
	return predicate.Match(predicate.AllOf(preds...), e)
}

// GetOne scans the cached entities in ascending id order and returns the
// first one matching every predicate. It never queries the store and
// returns nil, counting a miss, when nothing matches.
func (t *Table) GetOne(preds ...predicate.Expr) *Entity {
	expr := predicate.AllOf(preds...)

	t.mu.RLock()
	ids := make([]int64, 0, len(t.index))
	for id := range t.index {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var found *Entity
	for _, id := range ids {
		e := t.index[id]
		if predicate.Match(expr, e) {
			found = e
			break
		}
	}
	t.mu.RUnlock()

	if found == nil {
		t.stats.misses.Add(1)
		t.metrics.lookup(t.Name(), "miss")
		t.logger.Debug("no cached entity matched", zap.Stringer("predicate", expr))
		return nil
	}
	t.stats.hits.Add(1)
	t.metrics.lookup(t.Name(), "hit")
	return found
}
