// Package query is a client-side cache and sync engine for remote resources.
//
// # Overview
//
// Resources are identified by a Key such as ["conversation", "c-42"]. The
// Store keeps one Entry per key with its status, last value, last error and
// the time it was last fetched. A Coordinator decides when to fetch: it
// deduplicates concurrent fetches per key, waits for the remote prerequisite
// (the Gate) and applies a freshness Policy. A Poller refetches selected
// keys on an interval while they are observed. Mutate applies optimistic
// patches, performs a remote write, rolls back on failure and invalidates
// dependent keys on success.
//
// # Basic Usage
//
//	client := query.New(
//		query.WithGate(availability),
//		query.WithLogger(logger),
//	)
//	defer client.Close()
//
//	posts := query.NewResource(client, query.NeverStale(),
//		func(ctx context.Context, _ query.Key) ([]Post, error) {
//			return api.Posts(ctx)
//		})
//	posts.OnChange(func(v query.View[[]Post]) {
//		render(v.Value, v.Fetching, v.Err)
//	})
//	posts.SetKey(query.NewKey("posts"))
//
// # Freshness
//
// An entry is fresh only if its last fetch succeeded and it has not been
// invalidated since. NeverStale entries stay fresh until invalidated,
// AlwaysStale entries refetch whenever a new observer appears, TTL entries
// expire after a fixed duration and Poll entries refetch on a timer.
// Invalidation never discards a value: observers keep seeing the last known
// data while the refetch is in flight.
//
// # Ordering
//
// Listeners are called outside the store lock on the goroutine that made the
// change. Every change carries a store-wide Version; Resource drops any
// notification older than the last one it delivered.
package query
