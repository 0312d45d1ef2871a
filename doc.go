// Package depcache is an application-side caching layer in front of a shared
// Redis-like store. It caches score-ordered collections with filtered cursor
// pagination, invalidates cached keys when the entity type they were derived
// from changes, and throttles calls to quota-bound upstream APIs through a
// shared counter.
//
// Components:
//   - ScoreSet / ScoreList: sorted collections and the filtered pagination read path.
//   - Tracker: reverse index entity type -> cache keys, global or per group.
//   - Resetter: one invalidation API over prefix and dependency resets.
//   - Throttler: blocking and non-blocking rate limiting on a shared counter.
//   - Registry: declarative strategy descriptors (blob, dictionary, hash,
//     paged list, sorted set) bound to typed caches at startup.
//
// All coordination state lives in the backing store (see package store). The
// engine holds no authoritative state; any number of processes may share one
// store.
//
// Keys:
//
//	<ns>:dependency::<type>              - global dependency set
//	<ns>:dependency::<type>:group:<id>   - per-group dependency set
//	<ns>:<base>                          - strategy entries
//	<ns>:<base>/<instance>               - local-tier validity markers
//
// Pagination pattern:
//
//	page, _ := list.GetPage(ctx, key, visible, nil, 20) // first page
//	next, _ := list.GetPage(ctx, key, visible, page.Next, 20)
package depcache
