package query

import (
	"io"
	"log/slog"
	"math"
)

type options struct {
	clock        Clock
	gate         Gate
	logger       *slog.Logger
	policies     Policies
	idleCapacity int
	pollBackoff  bool
}

func defaultOptions() options {
	return options{
		clock:  realClock{},
		gate:   alwaysReady{},
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Client and the components it wires together.
type Option func(*options)

// WithClock sets the clock used for freshness decisions.
func WithClock(clk Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithGate sets the prerequisite that must be ready before anything is fetched.
func WithGate(g Gate) Option {
	return func(o *options) {
		if g != nil {
			o.gate = g
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPolicies sets the per-family freshness policies used when a resource
// does not declare its own.
func WithPolicies(p Policies) Option {
	return func(o *options) {
		o.policies = p
	}
}

// WithIdle bounds the number of retained unsubscribed entries.
func WithIdle(n int) Option {
	return func(o *options) {
		o.idleCapacity = n
	}
}

// WithPollBackoff stretches the poll interval after consecutive failures,
// doubling per failure up to maxBackoff.
func WithPollBackoff() Option {
	return func(o *options) {
		o.pollBackoff = true
	}
}
