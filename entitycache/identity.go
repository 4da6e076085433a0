package entitycache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/store"
)

// Create returns a new unsaved entity (id -1) owned by the table. It is not
// visible to Get until it is saved.
func (t *Table) Create() *Entity {
	e := newEntity(t)
	t.mu.Lock()
	t.own(e)
	t.mu.Unlock()
	return e
}

// Clone returns a new unsaved entity holding the values of src. A nil or
// foreign src yields a fresh entity.
func (t *Table) Clone(src *Entity) *Entity {
	e := newEntity(t)
	if src != nil && src.table == t {
		e.values = src.Values()
		e.values[t.schema.PrimaryKey().Position] = int64(-1)
	} else if src != nil {
		t.logger.Warn("clone of foreign entity", zap.String("source", src.table.Name()))
	}
	t.mu.Lock()
	t.own(e)
	t.mu.Unlock()
	return e
}

// own appends e to the owning collection. Callers hold mu.
func (t *Table) own(e *Entity) {
	if e.cached {
		return
	}
	e.cached = true
	t.owned = append(t.owned, e)
}

// Get returns the cached entity with key id, loading it from the store on a
// miss. It returns the sentinel when id <= 0, when no row exists and when
// the store fails.
func (t *Table) Get(ctx context.Context, id int64) *Entity {
	return t.Lookup(ctx, id).Entity
}

// Lookup is Get with an explicit outcome.
func (t *Table) Lookup(ctx context.Context, id int64) Result {
	if id <= 0 {
		t.stats.skips.Add(1)
		t.metrics.lookup(t.Name(), "skip")
		t.logger.Debug("lookup skipped", zap.Int64("id", id))
		return Result{Entity: t.sentinel, Status: Skipped, Err: ErrInvalidID}
	}

	t.mu.RLock()
	e, ok := t.index[id]
	generation := t.generation
	t.mu.RUnlock()
	if ok {
		t.stats.hits.Add(1)
		t.metrics.lookup(t.Name(), "hit")
		return Result{Entity: e, Status: Found}
	}

	t.stats.misses.Add(1)
	t.metrics.lookup(t.Name(), "miss")

	row, err := t.fetch(ctx, id)
	if err != nil {
		return t.failedLookup(id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.index[id]; ok {
		return Result{Entity: e, Status: Found}
	}
	if t.generation != generation {
		// a write raced the read; reload under the lock from the store
		t.invalidate(ctx, id)
		if row, err = t.store.SelectByID(ctx, t.schema, id); err != nil {
			return t.failedLookup(id, err)
		}
	}

	e = entityFromRow(t, row)
	t.own(e)
	t.index[id] = e
	return Result{Entity: e, Status: Found}
}

func (t *Table) failedLookup(id int64, err error) Result {
	if errors.Is(err, store.ErrNotFound) || cache.IsNotFound(err) {
		t.logger.Debug("row not found", zap.Int64("id", id))
		return Result{Entity: t.sentinel, Status: NotFound, Err: fmt.Errorf("%s id %d: %w", t.Name(), id, store.ErrNotFound)}
	}
	t.storeFailure("get", err, zap.Int64("id", id))
	return Result{Entity: t.sentinel, Status: StoreError, Err: err}
}

// fetch reads a row through the lookup cache when one is configured.
func (t *Table) fetch(ctx context.Context, id int64) ([]any, error) {
	if t.lookup == nil {
		return t.store.SelectByID(ctx, t.schema, id)
	}
	return cache.GetOrFetch(ctx, t.lookup, t.lookupKey(id), func(ctx context.Context) ([]any, error) {
		row, err := t.store.SelectByID(ctx, t.schema, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, cache.ErrNotFound
		}
		return row, err
	})
}

func (t *Table) lookupKey(id int64) string {
	return t.keys.SerializeKey("get", t.namespace, id)
}

func (t *Table) invalidate(ctx context.Context, id int64) {
	if t.lookup == nil {
		return
	}
	if err := t.lookup.Delete(ctx, t.lookupKey(id)); err != nil {
		t.logger.Warn("lookup cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}

// GetRecord reads the row with key id straight from the store. The result
// is a disconnected snapshot: it never enters the identity cache and does
// not see later updates made through cached entities.
func (t *Table) GetRecord(ctx context.Context, id int64) *Entity {
	return t.LookupRecord(ctx, id).Entity
}

// LookupRecord is GetRecord with an explicit outcome.
func (t *Table) LookupRecord(ctx context.Context, id int64) Result {
	if id <= 0 {
		t.stats.skips.Add(1)
		t.metrics.lookup(t.Name(), "skip")
		return Result{Entity: t.sentinel, Status: Skipped, Err: ErrInvalidID}
	}
	row, err := t.store.SelectByID(ctx, t.schema, id)
	if err != nil {
		return t.failedLookup(id, err)
	}
	return Result{Entity: entityFromRow(t, row), Status: Found}
}

// SaveOption configures Save and Persist.
type SaveOption func(*saveOptions)

type saveOptions struct {
	forceInsert bool
}

// ForceInsert inserts the entity even when it already holds a positive id.
func ForceInsert() SaveOption {
	return func(o *saveOptions) {
		o.forceInsert = true
	}
}

// Save persists e and reports whether the store accepted it. Failures are
// logged and leave the cache unchanged.
func (t *Table) Save(ctx context.Context, e *Entity, opts ...SaveOption) bool {
	return t.Persist(ctx, e, opts...) == nil
}

// Persist inserts e when its id is not positive or ForceInsert is given,
// and updates it otherwise. An insert assigns a fresh id from the allocator
// (or keeps the positive id of a forced insert) and indexes e. An update
// overwrites every cached entity sharing the id.
func (t *Table) Persist(ctx context.Context, e *Entity, opts ...SaveOption) error {
	if e == nil || e.sentinel {
		return ErrSentinel
	}
	if e.table != t {
		return ErrForeignEntity
	}

	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	values := e.Values()
	pk := t.schema.PrimaryKey().Position
	id, _ := values[pk].(int64)

	if id <= 0 || o.forceInsert {
		if id <= 0 {
			id = t.alloc.Next()
			values[pk] = id
		}
		if err := t.store.Insert(ctx, t.schema, values); err != nil {
			t.storeFailure("insert", err, zap.Int64("id", id))
			return err
		}
		e.setID(id)
		t.own(e)
		t.index[id] = e
		t.generation++
		t.invalidate(ctx, id)
		t.logger.Debug("entity inserted", zap.Int64("id", id))
		return nil
	}

	if err := t.store.Update(ctx, t.schema, values); err != nil {
		t.storeFailure("update", err, zap.Int64("id", id))
		return err
	}
	for _, twin := range t.owned {
		if twin != e && twin.ID() == id {
			twin.overwrite(values)
		}
	}
	t.generation++
	t.invalidate(ctx, id)
	t.logger.Debug("entity updated", zap.Int64("id", id))
	return nil
}

// Remove deletes the row with key id and drops every cached entity holding
// that id. It reports false for ids <= 0 and on store failure.
func (t *Table) Remove(ctx context.Context, id int64) bool {
	return t.Delete(ctx, id) == nil
}

// Delete is Remove with an error.
func (t *Table) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		t.stats.skips.Add(1)
		t.metrics.lookup(t.Name(), "skip")
		return ErrInvalidID
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delete(ctx, id)
}

func (t *Table) delete(ctx context.Context, id int64) error {
	if err := t.store.Delete(ctx, t.schema, id); err != nil {
		t.storeFailure("delete", err, zap.Int64("id", id))
		return err
	}

	kept := t.owned[:0]
	for _, e := range t.owned {
		if e.ID() == id {
			e.cached = false
			continue
		}
		kept = append(kept, e)
	}
	clear(t.owned[len(kept):])
	t.owned = kept
	delete(t.index, id)
	t.generation++
	t.invalidate(ctx, id)
	t.logger.Debug("entity removed", zap.Int64("id", id))
	return nil
}

// RemoveEntity removes e and resets its id to -1.
func (t *Table) RemoveEntity(ctx context.Context, e *Entity) bool {
	return t.DeleteEntity(ctx, e) == nil
}

// DeleteEntity is RemoveEntity with an error.
func (t *Table) DeleteEntity(ctx context.Context, e *Entity) error {
	if e == nil || e.sentinel {
		return ErrSentinel
	}
	if e.table != t {
		return ErrForeignEntity
	}
	id := e.ID()
	if id <= 0 {
		t.stats.skips.Add(1)
		t.metrics.lookup(t.Name(), "skip")
		return ErrInvalidID
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.delete(ctx, id); err != nil {
		return err
	}
	e.setID(-1)
	return nil
}

// Destroy releases every cached entity and clears the index. Entities keep
// working as disconnected snapshots.
func (t *Table) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.owned {
		e.cached = false
	}
	released := len(t.owned)
	t.owned = nil
	t.index = make(map[int64]*Entity)
	t.generation++

	if t.lookup != nil {
		prefix := t.keys.SerializeKey("get", t.namespace) + cache.KeySeparator
		if err := t.lookup.DeleteByPrefix(context.Background(), prefix); err != nil {
			t.logger.Warn("lookup cache release failed", zap.Error(err))
		}
	}
	t.logger.Debug("identity cache destroyed", zap.Int("released", released))
}

// Preload loads every row into the identity cache. Rows already cached are
// left as they are.
func (t *Table) Preload(ctx context.Context) error {
	rows, err := t.store.Select(ctx, t.schema, nil, nil)
	if err != nil {
		t.storeFailure("preload", err)
		return err
	}

	pk := t.schema.PrimaryKey().Position
	t.mu.Lock()
	defer t.mu.Unlock()

	loaded := 0
	for _, row := range rows {
		id, _ := row[pk].(int64)
		if id <= 0 {
			continue
		}
		if _, ok := t.index[id]; ok {
			continue
		}
		e := entityFromRow(t, row)
		t.own(e)
		t.index[id] = e
		loaded++
	}
	t.logger.Debug("identity cache preloaded", zap.Int("loaded", loaded))
	return nil
}

// Len returns the number of owned entities and of indexed ids.
func (t *Table) Len() (owned, indexed int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.owned), len(t.index)
}
