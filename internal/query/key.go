package query

import "strings"

// Key identifies a cached resource, e.g. ["conversation", "c-42"]. Keys that
// share a prefix form a family that can be invalidated together.
type Key []string

// NewKey builds a Key from its parts.
func NewKey(parts ...string) Key {
	if len(parts) == 0 {
		return nil
	}
	k := make(Key, len(parts))
	copy(k, parts)
	return k
}

// ID returns an unambiguous identity usable as a map key.
func (k Key) ID() string {
	return strings.Join(k, "\x1f")
}

// Family returns the first part of the key, or "" for an empty key.
func (k Key) Family() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// IsZero reports whether the key is empty. Empty keys are never fetched.
func (k Key) IsZero() bool {
	return len(k) == 0
}

// HasPrefix reports whether prefix matches the leading parts of k. An empty
// prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, part := range prefix {
		if k[i] != part {
			return false
		}
	}
	return true
}

// Equal reports whether both keys have identical parts.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

func (k Key) String() string {
	return "[" + strings.Join(k, " ") + "]"
}
