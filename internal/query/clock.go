package query

import "time"

// Clock provides the current time. Tests inject a fake to control staleness.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
