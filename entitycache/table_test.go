package entitycache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/goliatone/go-entity-cache/pkg/testsupport"
	"github.com/goliatone/go-entity-cache/predicate"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/store"
)

func newCurrencyTable(t *testing.T, opts ...Option) (*Table, *store.Store) {
	t.Helper()
	st := testsupport.NewStore(t, store.WithLogger(zaptest.NewLogger(t)))
	return newTableOn(t, st, testsupport.CurrencySchema(t), opts...), st
}

func newTableOn(t *testing.T, st *store.Store, s *schema.Table, opts ...Option) *Table {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	tbl := New(s, st, opts...)
	if err := tbl.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	return tbl
}

func TestTable_CurrencyScenario(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)
	symbol := tbl.Schema().MustColumn("CURRENCY_SYMBOL")

	all := tbl.All(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one seeded entity, got %d", len(all))
	}
	if got := all[0].Text("CURRENCYNAME"); got != "US Dollar" {
		t.Errorf("expected marker stripped name, got %q", got)
	}
	if !tbl.Schema().MustColumn("CURRENCYNAME").Translated {
		t.Error("expected CURRENCYNAME to carry a display translation obligation")
	}

	usd := tbl.Get(ctx, 1)
	if usd.IsSentinel() {
		t.Fatal("expected seeded row to be found")
	}
	if got := tbl.GetOne(predicate.Eq(symbol, "usd")); got != usd {
		t.Fatalf("GetOne() = %v, want the cached entity", got)
	}

	if err := usd.Set("CURRENCY_SYMBOL", "USD2"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if !tbl.Save(ctx, usd) {
		t.Fatal("Save() failed")
	}
	if got := tbl.Get(ctx, 1).Text("CURRENCY_SYMBOL"); got != "USD2" {
		t.Errorf("expected saved symbol USD2, got %q", got)
	}
	if got := tbl.GetRecord(ctx, 1).Text("CURRENCY_SYMBOL"); got != "USD2" {
		t.Errorf("expected store to hold USD2, got %q", got)
	}

	if !tbl.Remove(ctx, 1) {
		t.Fatal("Remove() failed")
	}
	gone := tbl.Get(ctx, 1)
	if !gone.IsSentinel() || gone.ID() != -1 {
		t.Errorf("expected sentinel with id -1, got %v", gone)
	}
}

func TestTable_EnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tbl, st := newCurrencyTable(t)

	for i := 0; i < 3; i++ {
		if err := tbl.Ensure(ctx); err != nil {
			t.Fatalf("Ensure() call %d failed: %v", i, err)
		}
	}
	if tbl.State() != Ready {
		t.Errorf("expected Ready, got %s", tbl.State())
	}

	count := func(kind, name string) int {
		var n int
		err := st.DB().QueryRowContext(ctx,
			"SELECT count(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&n)
		if err != nil {
			t.Fatalf("count %s failed: %v", kind, err)
		}
		return n
	}
	if n := count("table", "Currencyformats_V1"); n != 1 {
		t.Errorf("expected one table, got %d", n)
	}
	if n := count("index", "IDX_CURRENCYFORMATS_SYMBOL"); n != 1 {
		t.Errorf("expected one index, got %d", n)
	}
	if rows := tbl.All(ctx); len(rows) != 1 {
		t.Errorf("seeds must be inserted once, got %d rows", len(rows))
	}
}

func TestTable_Lifecycle(t *testing.T) {
	ctx := context.Background()
	st := testsupport.NewStore(t)
	tbl := New(testsupport.CurrencySchema(t), st)

	if tbl.State() != Unensured {
		t.Fatalf("expected Unensured, got %s", tbl.State())
	}
	if err := tbl.EnsureIndex(ctx); err == nil {
		t.Error("expected EnsureIndex to fail before Ensure")
	}
	if err := tbl.Ensure(ctx); err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	if tbl.State() != Ready {
		t.Errorf("expected Ready, got %s", tbl.State())
	}

	_ = tbl.Get(ctx, 1)
	if err := tbl.Drop(ctx); err != nil {
		t.Fatalf("Drop() failed: %v", err)
	}
	if tbl.State() != Unensured {
		t.Errorf("expected Unensured after Drop, got %s", tbl.State())
	}
	if owned, indexed := tbl.Len(); owned != 0 || indexed != 0 {
		t.Errorf("expected empty cache after Drop, got %d/%d", owned, indexed)
	}
}

func TestTable_EnsureFailureStaysUnensured(t *testing.T) {
	ctx := context.Background()
	def := testsupport.CurrencyDefinition()
	def.Seeds = append(def.Seeds, []any{1, "duplicate", "DUP"})

	tbl := New(schema.MustNew(def), testsupport.NewStore(t), WithLogger(zaptest.NewLogger(t)))
	if err := tbl.Ensure(ctx); err == nil {
		t.Fatal("expected Ensure to fail on duplicate seed keys")
	}
	if tbl.State() != Unensured {
		t.Errorf("expected Unensured, got %s", tbl.State())
	}
}

func TestTable_EnsureIndexFailureKeepsTable(t *testing.T) {
	ctx := context.Background()
	def := testsupport.CurrencyDefinition()
	def.Indexes = append(def.Indexes, "CREATE INDEX IDX_BROKEN ON Currencyformats_V1(NOPE)")

	tbl := New(schema.MustNew(def), testsupport.NewStore(t), WithLogger(zaptest.NewLogger(t)))
	if err := tbl.Ensure(ctx); err == nil {
		t.Fatal("expected index failure to be reported")
	}
	if tbl.State() != Ensured {
		t.Errorf("expected Ensured, got %s", tbl.State())
	}
	if got := tbl.Get(ctx, 1); got.IsSentinel() {
		t.Error("table must remain usable after an index failure")
	}
}

func TestTable_SaveThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)

	e := tbl.Create()
	if e.ID() != -1 {
		t.Fatalf("expected new entity id -1, got %d", e.ID())
	}
	e.MustSet("CURRENCYNAME", "Złoty").MustSet("CURRENCY_SYMBOL", "PLN")

	if tbl.Get(ctx, e.ID()) != tbl.Sentinel() {
		t.Error("unsaved entity must not be visible to Get")
	}
	if !tbl.Save(ctx, e) {
		t.Fatal("Save() failed")
	}
	if e.ID() <= 0 {
		t.Fatalf("expected positive id after insert, got %d", e.ID())
	}

	if got := tbl.Get(ctx, e.ID()); got != e {
		t.Error("expected Get to return the saved entity")
	}

	tbl.Destroy()
	loaded := tbl.Get(ctx, e.ID())
	if loaded == e || !loaded.Equals(e) {
		t.Errorf("expected a fresh, field-equal entity from the store: %v vs %v", loaded, e)
	}
}

func TestTable_LookupOutcomes(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	tbl, st := newCurrencyTable(t, WithMetrics(metrics))

	if r := tbl.Lookup(ctx, 0); r.Status != Skipped || !errors.Is(r.Err, ErrInvalidID) || r.Entity != tbl.Sentinel() {
		t.Errorf("Lookup(0) = %+v", r)
	}
	if r := tbl.Lookup(ctx, 1); r.Status != Found || !r.OK() {
		t.Errorf("Lookup(1) = %+v", r)
	}
	if r := tbl.Lookup(ctx, 1); r.Status != Found {
		t.Errorf("second Lookup(1) = %+v", r)
	}
	if r := tbl.Lookup(ctx, 404); r.Status != NotFound || !errors.Is(r.Err, store.ErrNotFound) {
		t.Errorf("Lookup(404) = %+v", r)
	}

	_ = st.DB().Close()
	r := tbl.Lookup(ctx, 5)
	if r.Status != StoreError || r.Entity != tbl.Sentinel() {
		t.Errorf("expected store error outcome, got %+v", r)
	}
	if tbl.Get(ctx, 6) != tbl.Sentinel() {
		t.Error("Get must collapse store failures to the sentinel")
	}
	if got := tbl.Get(ctx, 1); got.IsSentinel() {
		t.Error("cached entity must still be served without the store")
	}
	if tbl.Get(ctx, -3) != tbl.Sentinel() {
		t.Error("Get(-3) must be skipped")
	}

	want := Stats{Hits: 2, Misses: 4, Skips: 2}
	if got := tbl.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	name := tbl.Name()
	if got := testutil.ToFloat64(metrics.lookups.WithLabelValues(name, "hit")); got != 2 {
		t.Errorf("hit counter = %v", got)
	}
	if got := testutil.ToFloat64(metrics.lookups.WithLabelValues(name, "miss")); got != 4 {
		t.Errorf("miss counter = %v", got)
	}
	if got := testutil.ToFloat64(metrics.storeErrors.WithLabelValues(name, "get")); got != 2 {
		t.Errorf("store error counter = %v", got)
	}
}

func TestTable_GetRecordIsDisconnected(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)

	snapshot := tbl.GetRecord(ctx, 1)
	owned, indexed := tbl.Len()
	if owned != 0 || indexed != 0 {
		t.Fatalf("GetRecord must not populate the cache, got %d/%d", owned, indexed)
	}

	cached := tbl.Get(ctx, 1)
	if cached == snapshot {
		t.Fatal("expected distinct instances")
	}
	cached.MustSet("CURRENCY_SYMBOL", "USX")
	if !cached.Save(ctx) {
		t.Fatal("Save() failed")
	}
	if snapshot.Text("CURRENCY_SYMBOL") != "USD" {
		t.Errorf("snapshot must not follow cached updates, got %q", snapshot.Text("CURRENCY_SYMBOL"))
	}

	if tbl.GetRecord(ctx, 0) != tbl.Sentinel() {
		t.Error("GetRecord(0) must return the sentinel")
	}
	if r := tbl.LookupRecord(ctx, 999); r.Status != NotFound {
		t.Errorf("LookupRecord(999) = %+v", r)
	}
}

func TestTable_UpdateOverwritesCachedTwins(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)

	cached := tbl.Get(ctx, 1)
	twin := tbl.Create()
	twin.MustSet("CURRENCYID", 1).MustSet("CURRENCYNAME", "Dollar").MustSet("CURRENCY_SYMBOL", "$")

	if !tbl.Save(ctx, twin) {
		t.Fatal("Save() of twin failed")
	}
	if cached.Text("CURRENCY_SYMBOL") != "$" || cached.Text("CURRENCYNAME") != "Dollar" {
		t.Errorf("expected cached entity to be overwritten, got %v", cached)
	}
	if tbl.Get(ctx, 1) != cached {
		t.Error("index must keep the original cached entity")
	}

	snapshot := tbl.GetRecord(ctx, 1)
	snapshot.MustSet("CURRENCY_SYMBOL", "USD")
	if !tbl.Save(ctx, snapshot) {
		t.Fatal("Save() of snapshot failed")
	}
	if cached.Text("CURRENCY_SYMBOL") != "USD" || twin.Text("CURRENCY_SYMBOL") != "USD" {
		t.Error("saving a snapshot must refresh every cached twin")
	}
}

func TestTable_SaveFailureLeavesCacheUnchanged(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)
	_ = tbl.Get(ctx, 1)

	dup := tbl.Create()
	dup.MustSet("CURRENCYID", 1).MustSet("CURRENCY_SYMBOL", "DUP")
	ownedBefore, indexedBefore := tbl.Len()

	if tbl.Save(ctx, dup, ForceInsert()) {
		t.Fatal("forced insert of an existing key must fail")
	}
	if owned, indexed := tbl.Len(); owned != ownedBefore || indexed != indexedBefore {
		t.Errorf("cache changed on failure: %d/%d -> %d/%d", ownedBefore, indexedBefore, owned, indexed)
	}
	if tbl.Get(ctx, 1).Text("CURRENCY_SYMBOL") != "USD" {
		t.Error("cached entity must be untouched")
	}

	ghost := tbl.Create()
	ghost.MustSet("CURRENCYID", 777)
	if err := tbl.Persist(ctx, ghost); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update of an absent row: expected ErrNotFound, got %v", err)
	}
}

func TestTable_ForceInsertKeepsPositiveID(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)

	e := tbl.Create()
	e.MustSet("CURRENCYID", 500).MustSet("CURRENCYNAME", "Forced").MustSet("CURRENCY_SYMBOL", "FRC")
	if err := tbl.Persist(ctx, e, ForceInsert()); err != nil {
		t.Fatalf("Persist(ForceInsert) failed: %v", err)
	}
	if e.ID() != 500 {
		t.Errorf("expected id 500, got %d", e.ID())
	}
	if tbl.Get(ctx, 500) != e {
		t.Error("expected forced entity to be indexed")
	}
}

func TestTable_RemoveEntity(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)

	e := tbl.Create()
	e.MustSet("CURRENCYNAME", "Temp").MustSet("CURRENCY_SYMBOL", "TMP")
	if !e.Save(ctx) {
		t.Fatal("Save() failed")
	}
	id := e.ID()

	if !e.Remove(ctx) {
		t.Fatal("Remove() failed")
	}
	if e.ID() != -1 {
		t.Errorf("expected id reset to -1, got %d", e.ID())
	}
	if !tbl.Get(ctx, id).IsSentinel() {
		t.Error("removed entity must not be found")
	}
	for _, other := range tbl.All(ctx) {
		if other.ID() == id {
			t.Error("removed entity must be absent from All")
		}
	}

	if tbl.Remove(ctx, 0) {
		t.Error("Remove(0) must report false")
	}
	if err := tbl.Delete(ctx, -1); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Delete(-1) = %v", err)
	}
	if err := tbl.DeleteEntity(ctx, e); !errors.Is(err, ErrInvalidID) {
		t.Errorf("DeleteEntity of an unsaved entity = %v", err)
	}
}

func TestTable_RemoveDropsEveryCachedTwin(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)

	cached := tbl.Get(ctx, 1)
	twin := tbl.Create()
	twin.MustSet("CURRENCYID", 1)

	if !tbl.Remove(ctx, 1) {
		t.Fatal("Remove() failed")
	}
	if owned, indexed := tbl.Len(); owned != 0 || indexed != 0 {
		t.Errorf("expected both twins dropped, got %d/%d", owned, indexed)
	}
	if cached.ID() != 1 {
		t.Error("Remove by id must not reset the ids of dropped entities")
	}
}

func TestTable_SentinelAndForeignEntities(t *testing.T) {
	ctx := context.Background()
	tbl, st := newCurrencyTable(t)

	sentinel := tbl.Get(ctx, 0)
	if err := sentinel.Set("CURRENCY_SYMBOL", "X"); !errors.Is(err, ErrSentinel) {
		t.Errorf("Set on sentinel = %v", err)
	}
	if err := tbl.Persist(ctx, sentinel); !errors.Is(err, ErrSentinel) {
		t.Errorf("Persist(sentinel) = %v", err)
	}
	if tbl.RemoveEntity(ctx, sentinel) {
		t.Error("RemoveEntity(sentinel) must fail")
	}

	otherDef := testsupport.CurrencyDefinition()
	otherDef.Name = "Currencyformats_V2"
	otherDef.Indexes = nil
	other := newTableOn(t, st, schema.MustNew(otherDef))

	foreign := other.Create()
	if err := tbl.Persist(ctx, foreign); !errors.Is(err, ErrForeignEntity) {
		t.Errorf("Persist(foreign) = %v", err)
	}
	if err := tbl.DeleteEntity(ctx, other.Get(ctx, 1)); !errors.Is(err, ErrForeignEntity) {
		t.Errorf("DeleteEntity(foreign) = %v", err)
	}
	if c := tbl.Clone(foreign); c.ID() != -1 || c.Text("CURRENCYNAME") != "" {
		t.Errorf("clone of a foreign entity must be fresh, got %v", c)
	}
}

func TestTable_Clone(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)

	src := tbl.Get(ctx, 1)
	c := tbl.Clone(src)
	if c.ID() != -1 {
		t.Errorf("expected clone id -1, got %d", c.ID())
	}
	if c.Text("CURRENCYNAME") != "US Dollar" {
		t.Errorf("expected copied values, got %v", c)
	}
	c.MustSet("CURRENCY_SYMBOL", "USC")
	if src.Text("CURRENCY_SYMBOL") != "USD" {
		t.Error("clone must not share storage with its source")
	}
	if !c.Save(ctx) || c.ID() == 1 {
		t.Errorf("expected clone to insert under a new id, got %d", c.ID())
	}
}

func TestEntity_Set(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)
	e := tbl.Get(ctx, 1)

	if err := e.Set("NOPE", 1); !errors.Is(err, schema.ErrUnknownColumn) {
		t.Errorf("unknown column: %v", err)
	}
	if err := e.Set("CURRENCYID", "abc"); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("type mismatch: %v", err)
	}
	if err := e.Set("CURRENCYID", 2); !errors.Is(err, ErrImmutableKey) {
		t.Errorf("key change: %v", err)
	}
	if err := e.Set("currency_symbol", 42); err != nil || e.Text("CURRENCY_SYMBOL") != "42" {
		t.Errorf("case-insensitive coercing set failed: %v %q", err, e.Text("CURRENCY_SYMBOL"))
	}
	if _, err := e.Get("NOPE"); !errors.Is(err, schema.ErrUnknownColumn) {
		t.Errorf("Get(NOPE) = %v", err)
	}
	if e.Int("CURRENCYID") != 1 || e.Float("CURRENCYID") != 0 {
		t.Error("typed accessors returned unexpected values")
	}
	if e.Compare(tbl.Sentinel()) <= 0 {
		t.Error("expected saved entity to sort after the sentinel")
	}
}

func TestTable_ReadOnlyStore(t *testing.T) {
	ctx := context.Background()
	db := testsupport.OpenMemoryDB(t)
	writable := New(testsupport.CurrencySchema(t), store.New(db))
	if err := writable.Ensure(ctx); err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}

	tbl := New(testsupport.CurrencySchema(t), store.New(db, store.WithReadOnly(true)), WithLogger(zaptest.NewLogger(t)))
	if err := tbl.Ensure(ctx); err != nil {
		t.Fatalf("Ensure() on existing table failed: %v", err)
	}
	if tbl.State() != Ready {
		t.Errorf("expected Ready, got %s", tbl.State())
	}

	e := tbl.Get(ctx, 1)
	e.MustSet("CURRENCY_SYMBOL", "RO")
	if err := tbl.Persist(ctx, e); !errors.Is(err, store.ErrReadOnly) {
		t.Errorf("Persist() = %v, want ErrReadOnly", err)
	}
	if err := tbl.Delete(ctx, 1); !errors.Is(err, store.ErrReadOnly) {
		t.Errorf("Delete() = %v, want ErrReadOnly", err)
	}
}

func TestTable_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newCurrencyTable(t)

	const workers = 16
	var wg sync.WaitGroup
	got := make([]*Entity, workers)
	ids := make([]int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = tbl.Get(ctx, 1)

			e := tbl.Create()
			e.MustSet("CURRENCYNAME", "Worker").MustSet("CURRENCY_SYMBOL", "W")
			if tbl.Save(ctx, e) {
				ids[i] = e.ID()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i := 0; i < workers; i++ {
		if got[i] != got[0] || got[i].IsSentinel() {
			t.Fatalf("worker %d got a different entity for id 1", i)
		}
		if ids[i] <= 0 || seen[ids[i]] {
			t.Fatalf("worker %d: id %d missing or duplicated", i, ids[i])
		}
		seen[ids[i]] = true
	}
	if owned, indexed := tbl.Len(); owned != workers+1 || indexed != workers+1 {
		t.Errorf("expected %d cached entities, got %d/%d", workers+1, owned, indexed)
	}
}

func TestTable_Preload(t *testing.T) {
	ctx := context.Background()
	tbl, st := newCurrencyTable(t)
	_ = st.Insert(ctx, tbl.Schema(), []any{int64(2), "Euro", "EUR"})

	cached := tbl.Get(ctx, 1)
	cached.MustSet("CURRENCYNAME", "unsaved edit")

	if err := tbl.Preload(ctx); err != nil {
		t.Fatalf("Preload() failed: %v", err)
	}
	if _, indexed := tbl.Len(); indexed != 2 {
		t.Errorf("expected 2 indexed entities, got %d", indexed)
	}
	if tbl.Get(ctx, 1) != cached || cached.Text("CURRENCYNAME") != "unsaved edit" {
		t.Error("Preload must keep already cached entities")
	}
}
