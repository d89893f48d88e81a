package query

import (
	"fmt"
	"strings"
	"time"
)

// PolicyKind selects how freshness is judged.
type PolicyKind int

const (
	// Inherit defers to the family policy registered on the Client.
	Inherit PolicyKind = iota
	// NeverStaleKind keeps a successful value fresh until invalidated.
	NeverStaleKind
	// TTLKind keeps a successful value fresh for a fixed duration.
	TTLKind
	// PollKind keeps the value usable and refetches on a fixed interval while
	// subscribed.
	PollKind
)

// Policy decides whether a cached entry may be used without a new fetch.
type Policy struct {
	Kind     PolicyKind
	TTL      time.Duration
	Interval time.Duration
}

// NeverStale returns a policy that never expires a successful value.
func NeverStale() Policy {
	return Policy{Kind: NeverStaleKind}
}

// AlwaysStale returns a policy that refetches on every EnsureFresh.
func AlwaysStale() Policy {
	return Policy{Kind: TTLKind}
}

// TTL returns a policy that treats values as fresh for d.
func TTL(d time.Duration) Policy {
	if d < 0 {
		d = 0
	}
	return Policy{Kind: TTLKind, TTL: d}
}

// Poll returns a policy that refetches every interval while subscribed.
func Poll(interval time.Duration) Policy {
	return Policy{Kind: PollKind, Interval: interval}
}

// IsZero reports whether the policy inherits from its family.
func (p Policy) IsZero() bool {
	return p.Kind == Inherit
}

// Polls reports whether the policy arms a background refetch timer.
func (p Policy) Polls() bool {
	return p.Kind == PollKind && p.Interval > 0
}

// IsFresh reports whether e can be served without a new fetch at now.
// Only successful, non-invalidated entries are ever fresh.
func (p Policy) IsFresh(e Entry, now time.Time) bool {
	if e.Status != Success || e.LastFetchedAt.IsZero() {
		return false
	}
	switch p.Kind {
	case TTLKind:
		return now.Sub(e.LastFetchedAt) < p.TTL
	case NeverStaleKind, PollKind:
		return true
	default:
		return true
	}
}

func (p Policy) String() string {
	switch p.Kind {
	case NeverStaleKind:
		return "never"
	case TTLKind:
		if p.TTL == 0 {
			return "always"
		}
		return "ttl:" + p.TTL.String()
	case PollKind:
		return "poll:" + p.Interval.String()
	default:
		return "inherit"
	}
}

// ParsePolicy parses "never", "always", "ttl:<duration>" or "poll:<duration>".
func ParsePolicy(raw string) (Policy, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "", "inherit":
		return Policy{}, nil
	case "never":
		return NeverStale(), nil
	case "always":
		return AlwaysStale(), nil
	}

	kind, arg, ok := strings.Cut(value, ":")
	if !ok {
		return Policy{}, fmt.Errorf("unknown policy %q", raw)
	}
	d, err := time.ParseDuration(strings.TrimSpace(arg))
	if err != nil {
		return Policy{}, fmt.Errorf("parse policy %q: %w", raw, err)
	}
	switch kind {
	case "ttl":
		if d < 0 {
			return Policy{}, fmt.Errorf("policy %q: negative ttl", raw)
		}
		return TTL(d), nil
	case "poll":
		if d <= 0 {
			return Policy{}, fmt.Errorf("policy %q: poll interval must be positive", raw)
		}
		return Poll(d), nil
	default:
		return Policy{}, fmt.Errorf("unknown policy %q", raw)
	}
}

// Policies maps key families to freshness policies.
type Policies struct {
	Default  Policy
	Families map[string]Policy
}

// For returns the policy registered for the key's family, falling back to
// Default and then to NeverStale.
func (p Policies) For(key Key) Policy {
	if pol, ok := p.Families[key.Family()]; ok && !pol.IsZero() {
		return pol
	}
	if !p.Default.IsZero() {
		return p.Default
	}
	return NeverStale()
}
