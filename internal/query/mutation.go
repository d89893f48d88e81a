package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Optimistic is a local patch applied to Key before the remote confirms.
type Optimistic struct {
	Key   Key
	Patch Patch
}

// Mutation declares the cache effects of a remote write.
type Mutation struct {
	// Name labels the mutation in logs and errors.
	Name string
	// Optimistic patches are applied before the operation runs and rolled
	// back if it fails.
	Optimistic []Optimistic
	// Invalidates lists keys or key prefixes refetched after success.
	Invalidates []Key
	// InvalidateResult derives extra invalidations from the operation result,
	// e.g. the id of a newly created conversation.
	InvalidateResult func(result any) []Key
	// AwaitRefetch makes Mutate wait for the refetch of subscribed
	// invalidated keys before returning.
	AwaitRefetch bool
}

// Operation performs a remote write.
type Operation func(ctx context.Context) (any, error)

type snapshot struct {
	key        Key
	before     Entry
	written    uint64
	superseded bool
}

// Mutate runs op with the cache effects declared by m. Optimistic patches
// are visible to subscribers before op is called. On failure every patch is
// rolled back and the error is returned; there is no retry. On success the
// declared keys are invalidated and refetched, and the authoritative result
// replaces the optimistic values.
func (c *Client) Mutate(ctx context.Context, m Mutation, op Operation) (any, error) {
	if !c.gate.Ready() {
		return nil, fmt.Errorf("%s: %w", m.Name, ErrUnavailable)
	}
	c.stats.mutations.Add(1)

	snaps := c.applyOptimistic(m.Optimistic)

	result, err := op(ctx)
	if err != nil {
		c.rollback(snaps)
		c.logger.Warn("mutation failed", "mutation", m.Name, "error", err)
		return nil, err
	}

	var keys []Key
	if m.InvalidateResult != nil {
		keys = m.InvalidateResult(result)
	}
	matched := c.coord.Invalidate(nonZero(append(keys, m.Invalidates...))...)
	c.logger.Debug("mutation committed", "mutation", m.Name, "invalidated", len(matched))

	if m.AwaitRefetch {
		c.awaitRefetch(ctx, m.Name, matched)
	}
	return result, nil
}

// applyOptimistic snapshots and patches each target key. In-flight fetches
// for the targets are superseded first so a response that predates the write
// cannot erase the optimistic value; the post-commit refetch replaces it.
func (c *Client) applyOptimistic(patches []Optimistic) []snapshot {
	snaps := make([]snapshot, 0, len(patches))
	index := make(map[string]int, len(patches))
	for _, o := range patches {
		o := o
		if o.Key.IsZero() || o.Patch == nil {
			continue
		}
		dropped := c.coord.Supersede(o.Key)

		var before Entry
		after := c.store.Set(o.Key, func(e Entry) Entry {
			before = e
			return o.Patch(e)
		})
		if i, ok := index[o.Key.ID()]; ok {
			snaps[i].written = after.Version
			snaps[i].superseded = snaps[i].superseded || dropped
			continue
		}
		index[o.Key.ID()] = len(snaps)
		snaps = append(snaps, snapshot{key: o.Key, before: before, written: after.Version, superseded: dropped})
	}
	return snaps
}

// rollback restores each snapshot exactly when the entry still holds the
// optimistic write. If something newer landed since, restoring would clobber
// it, so the entry is invalidated and refetched instead. A restored entry
// that was waiting on a fetch the optimistic write superseded, or that was
// already stale, is refetched for its subscribers.
func (c *Client) rollback(snaps []snapshot) {
	for i := len(snaps) - 1; i >= 0; i-- {
		s := snaps[i]
		restoredEntry, restored := c.store.update(s.key, false, func(e Entry) (Entry, bool) {
			if e.Version != s.written {
				return e, false
			}
			return s.before, true
		})
		if restored {
			c.stats.rollbacks.Add(1)
			if restoredEntry.Subscribers > 0 && (s.superseded || restoredEntry.LastFetchedAt.IsZero()) {
				c.logger.Debug("refetching rolled back entry", "key", s.key.String())
				c.coord.Refetch(s.key, nil)
			}
			continue
		}
		c.logger.Debug("optimistic write overtaken, refetching", "key", s.key.String())
		c.coord.Invalidate(s.key)
	}
}

// nonZero drops empty keys, which would otherwise match every entry.
func nonZero(keys []Key) []Key {
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if !k.IsZero() {
			out = append(out, k)
		}
	}
	return out
}

func (c *Client) awaitRefetch(ctx context.Context, name string, keys []Key) {
	var g errgroup.Group
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return c.coord.Wait(ctx, key)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("refetch after mutation failed", "mutation", name, "error", err)
	}
}
