package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/five82/feedsync/internal/config"
	"github.com/five82/feedsync/internal/logging"
	"github.com/five82/feedsync/internal/prefs"
	"github.com/five82/feedsync/internal/query"
	"github.com/five82/feedsync/internal/remote"
	"github.com/five82/feedsync/internal/social"
	"github.com/five82/feedsync/internal/ui"
)

// Options configure the feedsync application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/feedsync/prefs.toml
	// ActorURL overrides the configured actor address; "memory" selects
	// the in-process demo backend.
	ActorURL string
	// LogWriter receives logs instead of the configured log file.
	LogWriter io.Writer
}

// Session is a booted client: configuration, logger, availability gate and
// the query engine bound to the social backend.
type Session struct {
	Config  config.Config
	Prefs   prefs.Prefs
	Logger  *slog.Logger
	Gate    *remote.Availability
	Client  *query.Client
	Queries *social.Queries

	identity   string
	cancel     context.CancelFunc
	stopHealth func()
	closers    []io.Closer
}

// Boot loads configuration and wires the actor, the availability probe and
// the query client. The probe runs until ctx is done or the actor answers.
func Boot(ctx context.Context, opts Options) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.ActorURL != "" {
		cfg.ActorURL = opts.ActorURL
	}

	s := &Session{Config: cfg, Prefs: prefs.Load(opts.PrefsPath)}

	if opts.LogWriter != nil {
		s.Logger = logging.New(logging.Options{Level: cfg.LogLevel, Writer: opts.LogWriter})
	} else {
		logger, closer, err := logging.Open(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		s.Logger = logger
		s.closers = append(s.closers, closer)
	}

	actor, pinger, identity, err := newActor(cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("init actor: %w", err)
	}
	s.identity = identity

	s.Gate = remote.NewAvailability()
	qopts := []query.Option{
		query.WithGate(s.Gate),
		query.WithLogger(s.Logger.With("component", "query")),
		query.WithPolicies(cfg.QueryPolicies(social.DefaultPolicies())),
		query.WithIdle(cfg.IdleEntries),
	}
	if cfg.PollBackoff {
		qopts = append(qopts, query.WithPollBackoff())
	}
	s.Client = query.New(qopts...)
	s.stopHealth = watchHealth(s.Client, s.Logger.With("component", "health"))
	s.Gate.OnReady(s.Client.Resume)
	s.Queries = social.NewQueries(s.Client, social.NewAPI(actor), identity)

	probeCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	remote.StartProbe(probeCtx, s.Gate, pinger, cfg.ProbeInterval, s.Logger.With("component", "remote"))

	s.Logger.Info("session started",
		"actor", cfg.ActorURL,
		"identity", identity,
		"policy_overrides", cfg.PolicyOverrides(),
	)
	return s, nil
}

// Identity returns the caller id messages are sent as.
func (s *Session) Identity() string {
	return s.identity
}

// Close stops the probe, the pollers and in-flight fetches, then closes the
// log file.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stopHealth != nil {
		s.stopHealth()
	}
	if s.Client != nil {
		stats := s.Client.Stats()
		s.Logger.Info("session closed",
			"fetches", stats.Fetches,
			"deduped", stats.Deduped,
			"discarded", stats.Discarded,
			"mutations", stats.Mutations,
			"rollbacks", stats.Rollbacks,
		)
		s.Client.Close()
	}
	for _, c := range s.closers {
		_ = c.Close()
	}
}

// Run boots feedsync and runs the TUI until the context is cancelled or the
// user quits.
func Run(ctx context.Context, opts Options) error {
	s, err := Boot(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	return ui.Run(ctx, ui.Options{
		Queries:   s.Queries,
		Gate:      s.Gate,
		Identity:  s.identity,
		LogFile:   s.Config.LogFile,
		Theme:     s.Prefs.Theme,
		Prefs:     s.Prefs,
		PrefsPath: opts.PrefsPath,
	})
}

func newActor(cfg config.Config) (remote.Actor, remote.Pinger, string, error) {
	if cfg.UsesMemoryActor() {
		identity := cfg.UserID
		if identity == "" {
			identity = demoIdentity
		}
		mem := social.NewMemory(identity)
		seedDemo(mem, identity)
		return mem, mem, identity, nil
	}

	client, err := remote.NewClient(cfg.ActorURL,
		remote.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		remote.WithIdentity(cfg.UserID),
	)
	if err != nil {
		return nil, nil, "", err
	}
	return client, client, client.Identity(), nil
}
