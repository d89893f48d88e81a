// Package config loads the feedsync configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/feedsync/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or empty, use defaults
//
// # TOML Format
//
//	actor_url = "127.0.0.1:4943"   # or "memory" for the built-in demo backend
//	user_id = "user-1"
//	rate_limit = 10                # calls per second, 0 disables limiting
//	rate_burst = 5
//	log_file = "~/.local/share/feedsync/feedsync.log"
//	log_level = "info"             # debug, info, warn, error
//	idle_entries = 256             # unobserved cache entries kept, 0 keeps all
//	poll_backoff = false
//	probe_interval = "2s"
//
//	[policies]
//	conversation = "poll:3s"
//	stories = "poll:60s"
//	posts = "ttl:30s"
//
// Policies accept "never", "always", "ttl:<duration>" and "poll:<duration>"
// and override the built-in policy of the named key family. Invalid values
// are reported by Load rather than ignored.
//
// Missing config files are NOT an error; defaults are used instead.
package config
