package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/feedsync/internal/query"
)

// Config captures feedsync settings.
type Config struct {
	ActorURL      string
	UserID        string
	RateLimit     float64
	RateBurst     int
	LogFile       string
	LogLevel      string
	IdleEntries   int
	PollBackoff   bool
	ProbeInterval time.Duration
	// Policies overrides the freshness policy of individual key families.
	Policies map[string]query.Policy
}

const (
	defaultConfigPath    = "~/.config/feedsync/config.toml"
	defaultLogFile       = "~/.local/share/feedsync/feedsync.log"
	defaultActorURL      = "127.0.0.1:4943"
	defaultLogLevel      = "info"
	defaultRateLimit     = 10
	defaultRateBurst     = 5
	defaultIdleEntries   = 256
	defaultProbeInterval = 2 * time.Second

	// MemoryActor selects the in-process backend instead of a gateway.
	MemoryActor = "memory"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		ActorURL:      defaultActorURL,
		RateLimit:     defaultRateLimit,
		RateBurst:     defaultRateBurst,
		LogFile:       mustExpand(defaultLogFile),
		LogLevel:      defaultLogLevel,
		IdleEntries:   defaultIdleEntries,
		ProbeInterval: defaultProbeInterval,
		Policies:      map[string]query.Policy{},
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		ActorURL      string            `toml:"actor_url"`
		UserID        string            `toml:"user_id"`
		RateLimit     *float64          `toml:"rate_limit"`
		RateBurst     *int              `toml:"rate_burst"`
		LogFile       string            `toml:"log_file"`
		LogLevel      string            `toml:"log_level"`
		IdleEntries   *int              `toml:"idle_entries"`
		PollBackoff   bool              `toml:"poll_backoff"`
		ProbeInterval string            `toml:"probe_interval"`
		Policies      map[string]string `toml:"policies"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.ActorURL); v != "" {
		cfg.ActorURL = v
	}
	cfg.UserID = strings.TrimSpace(raw.UserID)
	if raw.RateLimit != nil {
		cfg.RateLimit = *raw.RateLimit
	}
	if raw.RateBurst != nil && *raw.RateBurst > 0 {
		cfg.RateBurst = *raw.RateBurst
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		switch v {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = v
		default:
			return Config{}, fmt.Errorf("parse config: unknown log_level %q", raw.LogLevel)
		}
	}
	if raw.IdleEntries != nil && *raw.IdleEntries >= 0 {
		cfg.IdleEntries = *raw.IdleEntries
	}
	cfg.PollBackoff = raw.PollBackoff
	if v := strings.TrimSpace(raw.ProbeInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("parse config: invalid probe_interval %q", raw.ProbeInterval)
		}
		cfg.ProbeInterval = d
	}
	for family, value := range raw.Policies {
		p, err := query.ParsePolicy(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: policies.%s: %w", family, err)
		}
		if !p.IsZero() {
			cfg.Policies[strings.TrimSpace(family)] = p
		}
	}

	return cfg, nil
}

// QueryPolicies layers the configured overrides on top of base.
func (c Config) QueryPolicies(base query.Policies) query.Policies {
	out := query.Policies{Default: base.Default, Families: make(map[string]query.Policy, len(base.Families)+len(c.Policies))}
	for family, p := range base.Families {
		out.Families[family] = p
	}
	for family, p := range c.Policies {
		out.Families[family] = p
	}
	return out
}

// PolicyOverrides lists the overridden families in a stable order.
func (c Config) PolicyOverrides() []string {
	families := make([]string, 0, len(c.Policies))
	for family := range c.Policies {
		families = append(families, family)
	}
	sort.Strings(families)
	return families
}

// UsesMemoryActor reports whether the in-process backend is selected.
func (c Config) UsesMemoryActor() bool {
	return strings.EqualFold(strings.TrimSpace(c.ActorURL), MemoryActor)
}

// LogDir returns the directory holding the log file.
func (c Config) LogDir() string {
	if strings.TrimSpace(c.LogFile) == "" {
		return filepath.Dir(mustExpand(defaultLogFile))
	}
	return filepath.Dir(c.LogFile)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
