package query

import "errors"

var (
	// ErrUnavailable reports that the remote prerequisite is not ready yet.
	// Reads treat it as a deferred precondition; mutations return it.
	ErrUnavailable = errors.New("remote not available")
	// ErrSuperseded is returned to waiters whose fetch result was dropped
	// because the key changed identity or the cache was reset.
	ErrSuperseded = errors.New("fetch superseded")
	// ErrNoValue is recorded when a fetcher succeeds without a value.
	ErrNoValue = errors.New("fetch returned no value")
)
