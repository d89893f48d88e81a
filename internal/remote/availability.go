package remote

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

const defaultProbeInterval = 2 * time.Second

// Availability is the readiness gate for the backend. Queries stay disabled
// until it is set, and mutations fail fast.
type Availability struct {
	mu      sync.Mutex
	ready   bool
	onReady []func()
}

// NewAvailability returns a gate that is not ready.
func NewAvailability() *Availability {
	return &Availability{}
}

// Ready reports whether the backend is available.
func (a *Availability) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Set records readiness. Callbacks registered with OnReady run, outside the
// lock, each time the gate goes from not ready to ready.
func (a *Availability) Set(ready bool) {
	a.mu.Lock()
	opened := ready && !a.ready
	a.ready = ready
	callbacks := append([]func(){}, a.onReady...)
	a.mu.Unlock()

	if !opened {
		return
	}
	for _, fn := range callbacks {
		fn()
	}
}

// OnReady registers fn to run when the gate opens. If the gate is already
// open fn runs immediately.
func (a *Availability) OnReady(fn func()) {
	a.mu.Lock()
	a.onReady = append(a.onReady, fn)
	ready := a.ready
	a.mu.Unlock()
	if ready {
		fn()
	}
}

// StartProbe launches a goroutine that pings the backend every interval until
// it answers, then opens the gate and exits. It returns immediately.
func StartProbe(ctx context.Context, gate *Availability, p Pinger, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for attempt := 1; ; attempt++ {
			if err := p.Ping(ctx); err == nil {
				logger.Info("actor available", "attempts", attempt)
				gate.Set(true)
				return
			} else if ctx.Err() == nil {
				logger.Warn("actor probe failed", "attempt", attempt, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
