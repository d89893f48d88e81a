package app

import (
	"log/slog"
	"sync"

	"github.com/five82/feedsync/internal/query"
)

// healthLog logs when a cached resource goes offline and when it recovers.
type healthLog struct {
	logger *slog.Logger

	mu      sync.Mutex
	offline map[string]bool
	seen    map[string]uint64
}

// watchHealth observes every cache entry of client.
func watchHealth(client *query.Client, logger *slog.Logger) (cancel func()) {
	h := &healthLog{
		logger:  logger,
		offline: make(map[string]bool),
		seen:    make(map[string]uint64),
	}
	return client.Watch(nil, h.observe)
}

func (h *healthLog) observe(e query.Entry) {
	id := e.Key.String()
	offline := e.IsOffline()

	h.mu.Lock()
	if e.Version <= h.seen[id] || offline == h.offline[id] {
		h.seen[id] = max(h.seen[id], e.Version)
		h.mu.Unlock()
		return
	}
	h.seen[id] = e.Version
	if offline {
		h.offline[id] = true
	} else {
		delete(h.offline, id)
	}
	h.mu.Unlock()

	if offline {
		h.logger.Warn("resource offline", "key", id, "failures", e.ConsecutiveFailures, "error", e.Err)
		return
	}
	h.logger.Info("resource back online", "key", id)
}
