package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

// Config represents the notesync configuration file.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	API        APIConfig        `yaml:"api"`
	Commit     CommitConfig     `yaml:"commit"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Sync       SyncConfig       `yaml:"sync"`
	State      StateConfig      `yaml:"state"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Notify     NotifyConfig     `yaml:"notify"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RepositoryConfig identifies the remote repository notes are mirrored into.
type RepositoryConfig struct {
	Owner   string `yaml:"owner,omitempty"` // Defaults to the authenticated user's login
	Name    string `yaml:"name"`
	Branch  string `yaml:"branch"`
	BaseDir string `yaml:"base_dir,omitempty"` // Prefix prepended to every remote path
}

// APIConfig configures the Git Data API transport.
type APIConfig struct {
	URL               string  `yaml:"url"`
	AccessToken       string  `yaml:"access_token"`
	Timeout           string  `yaml:"timeout"` // Per-request deadline
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// CommitConfig is the author identity and message used for every commit.
type CommitConfig struct {
	UserName  string `yaml:"user_name"`
	UserEmail string `yaml:"user_email"`
	Message   string `yaml:"message"`
}

// WatcherConfig configures the local filesystem watcher.
type WatcherConfig struct {
	Enabled            *bool    `yaml:"enabled,omitempty"`
	EnumerateOnStartup bool     `yaml:"enumerate_on_startup"`
	LocalDirs          []string `yaml:"local_dirs"`
	Debounce           string   `yaml:"debounce"`
	Ignore             []string `yaml:"ignore,omitempty"`          // Base-name glob patterns
	ResyncInterval     string   `yaml:"resync_interval,omitempty"` // Periodic full re-enumeration; empty disables
}

// SyncConfig configures the publish queue and retry behaviour.
type SyncConfig struct {
	Workers           int              `yaml:"workers"`
	MaxAttempts       int              `yaml:"max_attempts"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay string           `yaml:"retry_initial_delay"`
	RetryMaxDelay     string           `yaml:"retry_max_delay"`
	RateLimitMaxWait  string           `yaml:"rate_limit_max_wait"`
	SkipUnchanged     bool             `yaml:"skip_unchanged"`
}

// StateConfig locates the local publish history database.
type StateConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint; empty address disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// NotifyConfig configures publish outcome notifications over NATS; empty URL disables it.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
	File   string    `yaml:"file,omitempty"` // Rotated log file; empty logs to stderr
}

// WatcherEnabled reports whether the live watcher should run (default true).
func (c *Config) WatcherEnabled() bool {
	return c.Watcher.Enabled == nil || *c.Watcher.Enabled
}

// APITimeout returns the parsed per-request deadline.
func (c *Config) APITimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

// DebounceWindow returns the parsed watcher debounce window.
func (c *Config) DebounceWindow() time.Duration {
	d, _ := time.ParseDuration(c.Watcher.Debounce)
	return d
}

// ResyncEvery returns the parsed resync interval, or zero when disabled.
func (c *Config) ResyncEvery() time.Duration {
	d, _ := time.ParseDuration(c.Watcher.ResyncInterval)
	return d
}

// Load reads, expands, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ferrors.ConfigError("configuration file not found").
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}

	return Parse(data)
}

// Parse decodes configuration bytes, expanding ${ENV} references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	enabled := true
	example := Config{
		Repository: RepositoryConfig{
			Name:    "notes",
			Branch:  "main",
			BaseDir: "notes",
		},
		API: APIConfig{
			URL:               defaultAPIURL,
			AccessToken:       "${GITHUB_TOKEN}",
			Timeout:           "30s",
			RequestsPerSecond: 10,
		},
		Commit: CommitConfig{
			UserName:  "Your Name",
			UserEmail: "you@example.com",
			Message:   defaultCommitMessage,
		},
		Watcher: WatcherConfig{
			Enabled:            &enabled,
			EnumerateOnStartup: true,
			LocalDirs:          []string{"~/notes"},
			Debounce:           "500ms",
			Ignore:             []string{".*", "*.swp", "*~"},
		},
		Sync: SyncConfig{
			Workers:           4,
			MaxAttempts:       5,
			RetryBackoff:      RetryBackoffExponential,
			RetryInitialDelay: "500ms",
			RetryMaxDelay:     "30s",
			RateLimitMaxWait:  "1h",
		},
		State:   StateConfig{Path: "./notesync-data/events.db"},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
