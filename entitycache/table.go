package entitycache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/i18n"
	"github.com/goliatone/go-entity-cache/idgen"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/store"
)

// State is the lifecycle state of a table.
type State int

const (
	Unensured State = iota
	Ensured
	Ready
)

func (s State) String() string {
	switch s {
	case Ensured:
		return "ensured"
	case Ready:
		return "ready"
	default:
		return "unensured"
	}
}

// Table is the runtime of one table: an identity cache over the store,
// lookups, writes, queries and projections.
type Table struct {
	schema     *schema.Table
	store      *store.Store
	logger     *zap.Logger
	alloc      *idgen.Allocator
	metrics    *Metrics
	translator i18n.Translator

	lookup    cache.CacheService
	keys      cache.KeySerializer
	namespace string

	// mu guards the identity cache.
	mu         sync.RWMutex
	owned      []*Entity
	index      map[int64]*Entity
	generation uint64

	sentinel *Entity
	stats    counters

	stateMu sync.Mutex
	state   State
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the table logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithAllocator shares an id allocator between tables.
func WithAllocator(alloc *idgen.Allocator) Option {
	return func(t *Table) {
		if alloc != nil {
			t.alloc = alloc
		}
	}
}

// WithMetrics exports lookup and failure counters.
func WithMetrics(m *Metrics) Option {
	return func(t *Table) {
		t.metrics = m
	}
}

// WithTranslator sets how translated columns are displayed.
func WithTranslator(tr i18n.Translator) Option {
	return func(t *Table) {
		if tr != nil {
			t.translator = tr
		}
	}
}

// WithLookupCache places a read-through cache in front of single-row store
// reads. scope separates tables of different containers sharing one cache.
func WithLookupCache(svc cache.CacheService, keys cache.KeySerializer, scope string) Option {
	return func(t *Table) {
		if svc == nil {
			return
		}
		if keys == nil {
			keys = cache.NewDefaultKeySerializer()
		}
		t.lookup = svc
		t.keys = keys
		t.namespace = toSnake(t.schema.Name())
		if scope != "" {
			t.namespace = scope + "." + t.namespace
		}
	}
}

// New builds the runtime of s over st.
func New(s *schema.Table, st *store.Store, opts ...Option) *Table {
	t := &Table{
		schema:     s,
		store:      st,
		logger:     zap.NewNop(),
		alloc:      idgen.New(),
		translator: i18n.Nop(language.Make(i18n.DefaultLocale)),
		index:      make(map[int64]*Entity),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("table", s.Name()))
	t.sentinel = newEntity(t)
	t.sentinel.sentinel = true
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.schema.Name() }

// Schema returns the table schema.
func (t *Table) Schema() *schema.Table { return t.schema }

// Sentinel returns the not-found placeholder of this table.
func (t *Table) Sentinel() *Entity { return t.sentinel }

// Translator returns the display translator.
func (t *Table) Translator() i18n.Translator { return t.translator }

// State returns the lifecycle state.
func (t *Table) State() State {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

// Ensure creates the table with its seed rows when it is absent, then
// creates its indexes. Creation runs in one transaction: on failure the
// table stays Unensured. An index failure leaves the table Ensured.
func (t *Table) Ensure(ctx context.Context) error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	exists, err := t.store.TableExists(ctx, t.schema)
	if err != nil {
		t.storeFailure("ensure", err)
		return err
	}

	if !exists {
		if err := t.store.CreateTable(ctx, t.schema); err != nil {
			t.storeFailure("ensure", err)
			return err
		}
		t.logger.Info("table created", zap.Int("seeds", len(t.schema.Seeds())))
	}
	if t.state < Ensured {
		t.state = Ensured
	}

	if t.store.ReadOnly() {
		t.state = Ready
		return nil
	}
	return t.ensureIndex(ctx)
}

// EnsureIndex creates every declared index that does not exist yet.
// Failures are aggregated and never roll back the table.
func (t *Table) EnsureIndex(ctx context.Context) error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.ensureIndex(ctx)
}

func (t *Table) ensureIndex(ctx context.Context) error {
	if t.state == Unensured {
		return fmt.Errorf("entitycache: ensure %s before its indexes", t.Name())
	}
	if err := t.store.EnsureIndexes(ctx, t.schema); err != nil {
		t.storeFailure("ensure_index", err)
		return err
	}
	t.state = Ready
	return nil
}

// Drop removes the table from the store and releases the identity cache.
func (t *Table) Drop(ctx context.Context) error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	if err := t.store.Drop(ctx, t.schema); err != nil {
		t.storeFailure("drop", err)
		return err
	}
	t.Destroy()
	t.state = Unensured
	return nil
}

// Stats returns the lookup counters.
func (t *Table) Stats() Stats {
	return t.stats.snapshot()
}

func (t *Table) storeFailure(op string, err error, fields ...zap.Field) {
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	t.metrics.storeError(t.Name(), op)
	t.logger.Error("store failure", append(fields, zap.String("op", op), zap.Error(err))...)
}
