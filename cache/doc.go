// Package cache provides the read-through lookup cache used on the miss path
// of entity lookups, together with the key serializer that names its entries.
//
// # Overview
//
//   - CacheService: read-through GetOrFetch plus key, prefix and batch
//     invalidation. The default implementation is backed by sturdyc.
//   - KeySerializer: builds stable keys from a method name and arguments.
//
// A table runtime asks the cache for a row before it queries the store. Concurrent
// lookups of the same id share one store query, and with MissingRecordStorage
// enabled an id that matched no row is remembered until a write invalidates it:
//
//	key := serializer.SerializeKey("get", namespace, id)
//	row, err := cache.GetOrFetch(ctx, service, key, func(ctx context.Context) ([]any, error) {
//		row, err := st.SelectByID(ctx, table, id)
//		if errors.Is(err, store.ErrNotFound) {
//			return nil, cache.ErrNotFound
//		}
//		return row, err
//	})
//
// # Keys
//
// Scalars serialize to their plain text so keys stay readable and every key
// of one namespace shares the "get::<namespace>::" prefix. Slices and maps
// serialize element by element, maps with sorted pairs. Functions serialize
// by pointer and are only stable within one process. Anything else falls back
// to JSON.
//
// # Errors
//
// A fetch function reports an absent record by returning ErrNotFound; every
// other error is passed through and never cached. GetOrFetch returns
// ErrInvalidResultType when a cached value does not have the requested type.
package cache
