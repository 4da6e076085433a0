// Package entitycache is the per-table runtime that fronts a SQL store with
// an identity cache.
//
// # Overview
//
// A Table owns every entity it hands out through Create, Clone and Get, and
// indexes the ones that hold a persisted, positive id. Reads come in two
// tiers:
//
//   - Cached reads (Get, Lookup, GetOne) return the single shared entity of
//     an id. A Save through any handle is visible to every other cached
//     handle of that id.
//   - Snapshot reads (GetRecord, All, FindBy and their error returning forms)
//     materialize fresh entities that never enter the cache and do not see
//     later updates.
//
// # Not found
//
// Single-row lookups never return nil. Get returns the table sentinel (id -1)
// when the id is not positive, when no row exists and when the store fails.
// Lookup returns the same entity inside a Result whose Status tells the
// three cases apart. Multi-row reads return an empty slice on failure, and
// List and Query also return the error.
//
// # Usage
//
//	currencies := entitycache.New(schemaTable, st, entitycache.WithLogger(logger))
//	if err := currencies.Ensure(ctx); err != nil {
//		return err
//	}
//
//	usd := currencies.Get(ctx, 1)
//	_ = usd.Set("CURRENCY_SYMBOL", "USD")
//	if !usd.Save(ctx) {
//		// logged; the cache is unchanged
//	}
//
//	symbol := schemaTable.MustColumn("CURRENCY_SYMBOL")
//	euros := currencies.FindBy(ctx, predicate.Or, predicate.Eq(symbol, "EUR"), predicate.Eq(symbol, "EURO"))
//
// # Concurrency
//
// Writes and cache mutations are serialized per table; cached lookups and
// GetOne share a read lock. The store read of a Get miss runs outside the
// lock and the cache is only mutated after the store succeeds. Ids come from
// an idgen.Allocator that has its own lock.
package entitycache
