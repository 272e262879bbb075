package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

// Validate checks a defaulted configuration for consistency.
func Validate(cfg *Config) error {
	v := validator{cfg: cfg}
	for _, check := range []func() error{
		v.repository,
		v.api,
		v.commit,
		v.watcher,
		v.sync,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type validator struct {
	cfg *Config
}

func invalid(msg, field string, value any) error {
	return ferrors.ValidationError(msg).WithContext("field", field).WithContext("value", value).Build()
}

func (v validator) repository() error {
	r := v.cfg.Repository
	if strings.TrimSpace(r.Name) == "" {
		return invalid("repository name is required", "repository.name", r.Name)
	}
	if strings.Contains(r.Name, "/") {
		return invalid("repository name must not contain '/'; set repository.owner instead", "repository.name", r.Name)
	}
	if strings.TrimSpace(r.Branch) == "" {
		return invalid("repository branch is required", "repository.branch", r.Branch)
	}
	return nil
}

func (v validator) api() error {
	a := v.cfg.API
	u, err := url.Parse(a.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("api url must be an absolute URL", "api.url", a.URL)
	}
	if strings.TrimSpace(a.AccessToken) == "" {
		return invalid("api access token is required", "api.access_token", "")
	}
	if err := positiveDuration("api.timeout", a.Timeout); err != nil {
		return err
	}
	if a.RequestsPerSecond < 0 {
		return invalid("requests_per_second must not be negative", "api.requests_per_second", a.RequestsPerSecond)
	}
	return nil
}

func (v validator) commit() error {
	c := v.cfg.Commit
	if strings.TrimSpace(c.UserName) == "" {
		return invalid("commit author name is required", "commit.user_name", c.UserName)
	}
	if !strings.Contains(c.UserEmail, "@") {
		return invalid("commit author email is invalid", "commit.user_email", c.UserEmail)
	}
	return nil
}

func (v validator) watcher() error {
	w := v.cfg.Watcher
	if err := positiveDuration("watcher.debounce", w.Debounce); err != nil {
		return err
	}
	if w.ResyncInterval != "" {
		if err := positiveDuration("watcher.resync_interval", w.ResyncInterval); err != nil {
			return err
		}
	}
	for _, p := range w.Ignore {
		if _, err := filepath.Match(p, "x"); err != nil {
			return invalid("invalid ignore pattern", "watcher.ignore", p)
		}
	}
	if (v.cfg.WatcherEnabled() || w.EnumerateOnStartup) && len(w.LocalDirs) == 0 {
		return invalid("at least one local directory is required", "watcher.local_dirs", w.LocalDirs)
	}
	return nil
}

func (v validator) sync() error {
	s := v.cfg.Sync
	if s.Workers < 1 {
		return invalid("sync workers must be at least 1", "sync.workers", s.Workers)
	}
	if s.MaxAttempts < 1 {
		return invalid("sync max_attempts must be at least 1", "sync.max_attempts", s.MaxAttempts)
	}
	if s.RetryBackoff == "" {
		return invalid("unknown retry backoff mode", "sync.retry_backoff", s.RetryBackoff)
	}
	if err := positiveDuration("sync.retry_initial_delay", s.RetryInitialDelay); err != nil {
		return err
	}
	if err := positiveDuration("sync.retry_max_delay", s.RetryMaxDelay); err != nil {
		return err
	}
	if err := positiveDuration("sync.rate_limit_max_wait", s.RateLimitMaxWait); err != nil {
		return err
	}
	initial, _ := time.ParseDuration(s.RetryInitialDelay)
	maxDelay, _ := time.ParseDuration(s.RetryMaxDelay)
	if maxDelay < initial {
		return invalid("retry_max_delay must be >= retry_initial_delay", "sync.retry_max_delay", s.RetryMaxDelay)
	}
	return nil
}

func positiveDuration(field, raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return invalid("expected a positive duration", field, raw)
	}
	return nil
}
