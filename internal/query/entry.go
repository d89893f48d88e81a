package query

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	// Idle entries have never been fetched, or are waiting on an unready gate.
	Idle Status = iota
	// Loading entries have a fetch in flight. The previous value stays visible.
	Loading
	// Success entries hold a value from the last completed fetch or patch.
	Success
	// Error entries record the last fetch failure, keeping any earlier value.
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// offlineThreshold is the number of consecutive failures after which an entry
// is reported offline.
const offlineThreshold = 2

// Entry is the cached state of one resource. Entries are values; the Store
// hands out copies and only Store.Set changes the stored one.
type Entry struct {
	Key    Key
	Status Status
	Value  any
	Err    error
	// LastFetchedAt is zero when the entry was never fetched or has been
	// invalidated. Staleness is derived from it, never from presence.
	LastFetchedAt       time.Time
	Subscribers         int
	ConsecutiveFailures int
	// Version increases on every Set across the whole store.
	Version uint64
}

// HasValue reports whether the entry holds a value.
func (e Entry) HasValue() bool {
	return e.Value != nil
}

// IsOffline returns true when the resource failed on several fetches in a row.
func (e Entry) IsOffline() bool {
	return e.ConsecutiveFailures >= offlineThreshold
}

// Patch transforms an entry. Key, Subscribers and Version are owned by the
// store and are restored after the patch runs.
type Patch func(Entry) Entry

// Value extracts the entry value as T.
func Value[T any](e Entry) (T, bool) {
	v, ok := e.Value.(T)
	return v, ok
}
