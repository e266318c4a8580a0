// Package store provides the named response stores used by the offline cache.
//
// A store is a persistent mapping from request identity to a cached HTTP
// response. The Manager owns the physical lifecycle of stores (creation,
// enumeration, deletion); strategy executors borrow a Store handle for the
// duration of a single request resolution.
//
// Two backends are available:
//
//   - memory: process-local, used by default and in tests
//   - redis: one hash per store plus a sorted-set index of store names
//
// # Basic Usage
//
//	manager := store.NewManager(store.NewMemoryBackend())
//
//	dynamic, err := manager.Open(ctx, "smartattend-dynamic-v1.0.0")
//	if err != nil {
//		return err
//	}
//
//	key := store.KeyFromRequest(req)
//	entry, err := dynamic.Get(ctx, key)
//	if errors.Is(err, store.ErrCacheMiss) {
//		// fetch from the network
//	}
//
// # HTTP Response Caching
//
//	entry, err := store.ResponseToEntry(resp, key)
//	if err != nil {
//		return err
//	}
//	if err := dynamic.Put(ctx, key, entry); err != nil {
//		// StorageError: treat as "not cached"
//	}
//
// # Identity
//
// Entries are addressed by method and normalized URL. Request headers named
// in the cached response's Vary header are recorded at write time and must
// match on lookup, otherwise the lookup is a miss. "Vary: *" never matches.
//
// # Metrics
//
//   - swcache_store_hits_total{store} - Store hits
//   - swcache_store_misses_total{store} - Store misses
//   - swcache_store_writes_total{store} - Entries written
//   - swcache_store_errors_total{operation} - Backend failures
//   - swcache_stores_deleted_total - Stores removed by DeleteStore
package store
