package query

import "sync/atomic"

// Stats counts coordinator activity using atomic counters.
type Stats struct {
	fetches   atomic.Int64
	deduped   atomic.Int64
	discarded atomic.Int64
	failures  atomic.Int64
	mutations atomic.Int64
	rollbacks atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Fetches   int64
	Deduped   int64
	Discarded int64
	Failures  int64
	Mutations int64
	Rollbacks int64
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Fetches:   s.fetches.Load(),
		Deduped:   s.deduped.Load(),
		Discarded: s.discarded.Load(),
		Failures:  s.failures.Load(),
		Mutations: s.mutations.Load(),
		Rollbacks: s.rollbacks.Load(),
	}
}
