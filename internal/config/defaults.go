package config

const (
	defaultAPIURL        = "https://api.github.com"
	defaultBranch        = "main"
	defaultCommitMessage = "updated notes"
	defaultNotifySubject = "notesync.publish"
)

// DefaultApplier fills zero values in one section of the configuration.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
}

type repositoryDefaults struct{}

func (repositoryDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Repository.Branch == "" {
		cfg.Repository.Branch = defaultBranch
	}
}

type apiDefaults struct{}

func (apiDefaults) ApplyDefaults(cfg *Config) {
	if cfg.API.URL == "" {
		cfg.API.URL = defaultAPIURL
	}
	if cfg.API.Timeout == "" {
		cfg.API.Timeout = "30s"
	}
	if cfg.API.RequestsPerSecond == 0 {
		cfg.API.RequestsPerSecond = 10
	}
}

type commitDefaults struct{}

func (commitDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Commit.Message == "" {
		cfg.Commit.Message = defaultCommitMessage
	}
}

type watcherDefaults struct{}

func (watcherDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Watcher.Debounce == "" {
		cfg.Watcher.Debounce = "500ms"
	}
	if cfg.Watcher.Ignore == nil {
		cfg.Watcher.Ignore = []string{".*", "*.swp", "*~"}
	}
}

type syncDefaults struct{}

func (syncDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 5
	}
	if cfg.Sync.RetryBackoff == "" {
		cfg.Sync.RetryBackoff = RetryBackoffExponential
	} else {
		cfg.Sync.RetryBackoff = NormalizeRetryBackoff(string(cfg.Sync.RetryBackoff))
	}
	if cfg.Sync.RetryInitialDelay == "" {
		cfg.Sync.RetryInitialDelay = "500ms"
	}
	if cfg.Sync.RetryMaxDelay == "" {
		cfg.Sync.RetryMaxDelay = "30s"
	}
	if cfg.Sync.RateLimitMaxWait == "" {
		cfg.Sync.RateLimitMaxWait = "1h"
	}
}

type stateDefaults struct{}

func (stateDefaults) ApplyDefaults(cfg *Config) {
	if cfg.State.Path == "" {
		cfg.State.Path = "./notesync-data/events.db"
	}
}

type notifyDefaults struct{}

func (notifyDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultNotifySubject
	}
}

type loggingDefaults struct{}

func (loggingDefaults) ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}

var defaultAppliers = []DefaultApplier{
	repositoryDefaults{},
	apiDefaults{},
	commitDefaults{},
	watcherDefaults{},
	syncDefaults{},
	stateDefaults{},
	notifyDefaults{},
	loggingDefaults{},
}

// ApplyDefaults runs every section applier over cfg.
func ApplyDefaults(cfg *Config) {
	for _, a := range defaultAppliers {
		a.ApplyDefaults(cfg)
	}
}
